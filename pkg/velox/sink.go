package velox

// MetricsSink receives per-method cache events. Implementations must be
// O(1) and non-blocking; sinks that need batching should buffer
// internally. The cache treats the sink as best-effort and swallows
// panics from it.
type MetricsSink interface {
	// OnHit is called when a read is served from the cache.
	OnHit(method string)

	// OnMiss is called when a read runs the factory.
	OnMiss(method string)

	// OnEviction is called per removed entry with the removal reason
	// (e.g. "capacity").
	OnEviction(method, reason string)

	// OnError is called when a factory or lock acquisition fails.
	OnError(method, message string)
}

// NopSink discards all events.
type NopSink struct{}

// OnHit implements MetricsSink.
func (NopSink) OnHit(string) {}

// OnMiss implements MetricsSink.
func (NopSink) OnMiss(string) {}

// OnEviction implements MetricsSink.
func (NopSink) OnEviction(string, string) {}

// OnError implements MetricsSink.
func (NopSink) OnError(string, string) {}

// safeSink shields the cache from sink panics.
type safeSink struct {
	inner MetricsSink
}

func (s safeSink) OnHit(method string) {
	defer recoverSink()
	s.inner.OnHit(method)
}

func (s safeSink) OnMiss(method string) {
	defer recoverSink()
	s.inner.OnMiss(method)
}

func (s safeSink) OnEviction(method, reason string) {
	defer recoverSink()
	s.inner.OnEviction(method, reason)
}

func (s safeSink) OnError(method, message string) {
	defer recoverSink()
	s.inner.OnError(method, message)
}

func recoverSink() {
	_ = recover()
}
