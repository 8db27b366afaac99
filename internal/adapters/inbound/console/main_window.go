package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/message"

	portsout "ledgerdesk/internal/application/ports/out"
	valueobjects "ledgerdesk/internal/domain/value_objects"
)

var ErrWindowAlreadyShown = errors.New("main window already shown")

// MainWindow is the terminal rendition of the primary window. It prints the
// verified tables and stays open until input is closed, a line is entered or
// ctx is done.
type MainWindow struct {
	out     io.Writer
	in      io.Reader
	title   string
	printer *message.Printer

	mu    sync.Mutex
	shown bool
}

var _ portsout.MainWindow = (*MainWindow)(nil)

// NewMainWindow renders to out. A nil in makes Show return right after
// rendering.
func NewMainWindow(out io.Writer, in io.Reader, title string, printer *message.Printer) *MainWindow {
	return &MainWindow{
		out:     out,
		in:      in,
		title:   title,
		printer: printer,
	}
}

func (w *MainWindow) Show(ctx context.Context, report valueobjects.VerificationReport) error {
	w.mu.Lock()
	if w.shown {
		w.mu.Unlock()
		return ErrWindowAlreadyShown
	}
	w.shown = true
	w.mu.Unlock()

	w.render(report)

	if w.in == nil {
		return nil
	}

	fmt.Fprintln(w.out, text.FgHiBlack.Sprint(w.printer.Sprintf(msgPressEnter)))

	// The reader may outlive Show when ctx ends first; the buffered channel
	// lets it exit as soon as the pending read returns.
	read := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(w.in).ReadString('\n')
		read <- err
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-read:
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read input: %w", err)
		}
		return nil
	}
}

func (w *MainWindow) render(report valueobjects.VerificationReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w.out)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(w.title)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint(w.printer.Sprintf(msgTableHeader)),
		text.FgHiCyan.Sprint(w.printer.Sprintf(msgRowsHeader)),
	})
	for _, name := range report.Tables() {
		rows, _ := report.Count(name)
		t.AppendRow(table.Row{name, w.printer.Sprintf("%d", rows)})
	}
	t.AppendFooter(table.Row{w.printer.Sprintf(msgTotal), w.printer.Sprintf("%d", report.TotalRows())})
	t.Render()

	fmt.Fprintln(w.out, text.FgGreen.Sprint(w.printer.Sprintf(msgReady, report.Len())))
}
