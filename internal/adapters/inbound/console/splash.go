package console

import (
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/text/message"

	portsout "ledgerdesk/internal/application/ports/out"
)

// Splash shows a spinner while the bootstrap runs. The spinner stays silent
// when out is not a terminal.
type Splash struct {
	printer *message.Printer

	mu sync.Mutex
	s  *spinner.Spinner
}

var _ portsout.StartupIndicator = (*Splash)(nil)

func NewSplash(out io.Writer, printer *message.Printer) *Splash {
	return &Splash{
		printer: printer,
		s:       spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out)),
	}
}

// Start shows message, translated when the catalog knows it.
func (s *Splash) Start(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.s.Suffix = " " + s.printer.Sprintf(msg)
	s.s.Start()
}

func (s *Splash) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.s.Stop()
}

// PreparingMessage is the default splash text.
func PreparingMessage() string {
	return msgPreparing
}
