package out

// LoggerSink is the process-wide structured log writer. Fatal records the
// entry at fatal severity and returns; it never terminates the process.
type LoggerSink interface {
	Info(msg string, keysAndValues ...any)
	Error(msg string, err error, keysAndValues ...any)
	Fatal(msg string, err error)
	Flush() error
}
