package log

// Logger receives events. Log is called on the I/O path of every
// connection, so implementations must be safe for concurrent use and
// should not block.
type Logger interface {
	Log(event Event)
}

// NoopLogger drops every event. The zero value is ready to use.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
