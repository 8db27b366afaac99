package out

import "ledgerdesk/internal/application/dto"

type FailureNotifier interface {
	NotifyFailure(outcome dto.BootstrapOutcome)
	// NotifyStartupError reports a failure that happened before a bootstrap
	// outcome existed, such as a configuration or host start error.
	NotifyStartupError(err error)
}
