package log

// MultiLogger sends every event to several loggers in order, e.g. a
// FileLogger and a SlogAdapter.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger returns a MultiLogger over the non-nil loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log sends event to all loggers.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Filtered forwards to a Logger only the events keep accepts.
type Filtered struct {
	Logger Logger
	Keep   func(Event) bool
}

// Log forwards event when Keep accepts it.
func (f Filtered) Log(event Event) {
	if f.Keep(event) {
		f.Logger.Log(event)
	}
}

// WithoutFrames accepts everything except raw transport frames.
func WithoutFrames(event Event) bool {
	return event.Frame == nil
}

// Matching returns a predicate accepting the events that match filter.
func Matching(filter Filter) func(Event) bool {
	return filter.Match
}

// Compile-time interface satisfaction checks.
var (
	_ Logger = (*MultiLogger)(nil)
	_ Logger = Filtered{}
)
