package core

// Logger is the app-wide leveled logger.
// Implementations may interpret extra args as structured context (eg. the
// logged-in user) and ship them to an error reporting backend.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
