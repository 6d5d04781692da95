package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. The batch selector reports covariance repairs through
// it, so tests can capture or mute those notices.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Noticef logs a diagnostic notice tagged with the emitting component, e.g.
// "[batch] covariance matrix is not positive semidefinite".
func Noticef(component, format string, v ...interface{}) {
	Logf("["+component+"] "+format, v...)
}
