package cmap

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                {}
func (NoopMetrics) Miss()               {}
func (NoopMetrics) Remove(RemoveReason) {}
func (NoopMetrics) Size(entries int)    {}

var _ Metrics = NoopMetrics{}
