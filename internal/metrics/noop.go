package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRepurposeRequest is a no-op.
func (n *NoopRecorder) IncRepurposeRequest(status string) {}

// IncGeneration is a no-op.
func (n *NoopRecorder) IncGeneration(platform, status string) {}

// ObserveGenerationDuration is a no-op.
func (n *NoopRecorder) ObserveGenerationDuration(duration time.Duration) {}

// IncUsageUpdateFailed is a no-op.
func (n *NoopRecorder) IncUsageUpdateFailed() {}

// IncScrape is a no-op.
func (n *NoopRecorder) IncScrape(status string) {}

// IncJobPublished is a no-op.
func (n *NoopRecorder) IncJobPublished(status string) {}

// IncJobProcessed is a no-op.
func (n *NoopRecorder) IncJobProcessed(status string) {}

// ObserveJobBatchSize is a no-op.
func (n *NoopRecorder) ObserveJobBatchSize(size int) {}

// SetJobQueueDepth is a no-op.
func (n *NoopRecorder) SetJobQueueDepth(depth int64) {}
