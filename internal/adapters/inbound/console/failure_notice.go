package console

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"golang.org/x/text/message"

	"ledgerdesk/internal/application/dto"
	portsout "ledgerdesk/internal/application/ports/out"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

// FailureNotice prints the single user-facing message shown when startup
// does not reach the main window.
type FailureNotice struct {
	out     io.Writer
	printer *message.Printer
	logPath string
}

var _ portsout.FailureNotifier = (*FailureNotice)(nil)

func NewFailureNotice(out io.Writer, printer *message.Printer, logPath string) *FailureNotice {
	return &FailureNotice{out: out, printer: printer, logPath: logPath}
}

func (n *FailureNotice) NotifyFailure(outcome dto.BootstrapOutcome) {
	if outcome.Succeeded() {
		return
	}

	p := n.printer
	if outcome.Interrupted() {
		color.New(color.FgYellow, color.Bold).Fprintln(n.out, p.Sprintf(msgStartupInterrupted))
		return
	}

	color.New(color.FgRed, color.Bold).Fprintln(n.out, p.Sprintf(msgStartupFailed))

	cause := "unknown error"
	code := ""
	if appErr := outcome.Err(); appErr != nil {
		cause = appErr.Error()
		code = appErr.Code
	}

	fmt.Fprintln(n.out, p.Sprintf(msgStageFailed, stageLabel(p, outcome.FailedStage()), cause))
	if code != "" {
		fmt.Fprintln(n.out, p.Sprintf(msgErrorCode, code))
	}
	if runID := outcome.RunID(); runID != "" {
		fmt.Fprintln(n.out, color.New(color.Faint).Sprint(p.Sprintf(msgRunID, runID)))
	}

	n.printLogHint()
}

func (n *FailureNotice) NotifyStartupError(err error) {
	if err == nil {
		return
	}

	p := n.printer
	color.New(color.FgRed, color.Bold).Fprintln(n.out, p.Sprintf(msgStartupFailed))
	fmt.Fprintln(n.out, err.Error())
	if appErr := apperrors.As(err); appErr.Code != "INTERNAL_ERROR" {
		fmt.Fprintln(n.out, p.Sprintf(msgErrorCode, appErr.Code))
	}
	n.printLogHint()
}

func (n *FailureNotice) printLogHint() {
	hint := n.printer.Sprintf(msgSeeLog)
	if n.logPath != "" {
		hint += " (" + n.logPath + ")"
	}
	fmt.Fprintln(n.out, hint)
}
