package cache

// NoopMetrics is the default Metrics implementation; it records nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()              {}
func (NoopMetrics) Miss()             {}
func (NoopMetrics) Evict(EvictReason) {}
func (NoopMetrics) Size(int)          {}

var _ Metrics = NoopMetrics{}
