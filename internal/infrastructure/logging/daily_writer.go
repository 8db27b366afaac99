package logging

import (
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const dayLayout = "2006-01-02"

// dailyWriter rolls the lumberjack file on the first write of each local day.
// Size based rolling and retention stay with lumberjack.
type dailyWriter struct {
	mu     sync.Mutex
	file   *lumberjack.Logger
	now    func() time.Time
	day    string
	primed bool
}

func newDailyWriter(file *lumberjack.Logger, now func() time.Time) *dailyWriter {
	if now == nil {
		now = time.Now
	}

	return &dailyWriter{file: file, now: now}
}

func (w *dailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := w.now().Local().Format(dayLayout)
	if !w.primed {
		w.primed = true
		w.day = today
		if info, err := os.Stat(w.file.Filename); err == nil && info.Size() > 0 && info.ModTime().Local().Format(dayLayout) != today {
			if err := w.file.Rotate(); err != nil {
				return 0, err
			}
		}
	} else if w.day != today {
		w.day = today
		if err := w.file.Rotate(); err != nil {
			return 0, err
		}
	}

	return w.file.Write(p)
}

func (w *dailyWriter) Sync() error {
	return nil
}

func (w *dailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}
