package out

type StartupIndicator interface {
	Start(message string)
	Stop()
}
