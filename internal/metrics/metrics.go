// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Repurpose metrics
	IncRepurposeRequest(status string)     // status: "success", "partial", "failed"
	IncGeneration(platform, status string) // status: "success", "failed", "degraded"
	ObserveGenerationDuration(duration time.Duration)
	IncUsageUpdateFailed()

	// Scraper metrics
	IncScrape(status string) // status: "success", "failed", "invalid", "cache_hit"

	// Content job pipeline metrics
	IncJobPublished(status string) // status: "success" or "dropped"
	IncJobProcessed(status string) // status: "recorded", "abandoned", "dead_lettered"
	ObserveJobBatchSize(size int)
	SetJobQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
