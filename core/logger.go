package core

// Logger is the logging service injected into the components that need one.
// args are free-form: errors, maps of extra data, or the current user.Viewer.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
