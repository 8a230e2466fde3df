package events

// noopSink is wired in when no transport is configured: every Publish is a
// cheap no-op reporting non-delivery.
type noopSink struct{}

func NewNoop() Sink { return noopSink{} }

func (noopSink) Publish(string, map[string]interface{}) bool { return false }

func (noopSink) Enabled() bool { return false }

func (noopSink) Close() error { return nil }
