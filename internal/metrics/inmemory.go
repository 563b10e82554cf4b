package metrics

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
// Labeled counters are keyed by "label" or "platform:status".
type Snapshot struct {
	RepurposeRequests         map[string]uint64
	Generations               map[string]uint64
	GenerationDurationCount   uint64
	GenerationDurationTotalNs int64
	UsageUpdateFailures       uint64
	Scrapes                   map[string]uint64
	JobsPublished             map[string]uint64
	JobsProcessed             map[string]uint64
	JobBatchCount             uint64
	JobBatchItems             uint64
	JobQueueDepth             int64
}

// InMemoryRecorder stores metrics in memory for tests and the /metrics endpoint.
type InMemoryRecorder struct {
	mu                sync.Mutex
	repurposeRequests map[string]uint64
	generations       map[string]uint64
	scrapes           map[string]uint64
	jobsPublished     map[string]uint64
	jobsProcessed     map[string]uint64

	generationDurationCount   uint64
	generationDurationTotalNs int64
	usageUpdateFailures       uint64
	jobBatchCount             uint64
	jobBatchItems             uint64
	jobQueueDepth             int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		repurposeRequests: make(map[string]uint64),
		generations:       make(map[string]uint64),
		scrapes:           make(map[string]uint64),
		jobsPublished:     make(map[string]uint64),
		jobsProcessed:     make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		RepurposeRequests:         maps.Clone(m.repurposeRequests),
		Generations:               maps.Clone(m.generations),
		GenerationDurationCount:   atomic.LoadUint64(&m.generationDurationCount),
		GenerationDurationTotalNs: atomic.LoadInt64(&m.generationDurationTotalNs),
		UsageUpdateFailures:       atomic.LoadUint64(&m.usageUpdateFailures),
		Scrapes:                   maps.Clone(m.scrapes),
		JobsPublished:             maps.Clone(m.jobsPublished),
		JobsProcessed:             maps.Clone(m.jobsProcessed),
		JobBatchCount:             atomic.LoadUint64(&m.jobBatchCount),
		JobBatchItems:             atomic.LoadUint64(&m.jobBatchItems),
		JobQueueDepth:             atomic.LoadInt64(&m.jobQueueDepth),
	}
}

func (m *InMemoryRecorder) inc(counters map[string]uint64, key string) {
	m.mu.Lock()
	counters[key]++
	m.mu.Unlock()
}

// IncRepurposeRequest increments the repurpose request counter.
func (m *InMemoryRecorder) IncRepurposeRequest(status string) {
	m.inc(m.repurposeRequests, status)
}

// IncGeneration increments the per-platform generation counter.
func (m *InMemoryRecorder) IncGeneration(platform, status string) {
	m.inc(m.generations, platform+":"+status)
}

// ObserveGenerationDuration records a generation call duration.
func (m *InMemoryRecorder) ObserveGenerationDuration(duration time.Duration) {
	atomic.AddUint64(&m.generationDurationCount, 1)
	atomic.AddInt64(&m.generationDurationTotalNs, duration.Nanoseconds())
}

// IncUsageUpdateFailed increments the usage update failure counter.
func (m *InMemoryRecorder) IncUsageUpdateFailed() {
	atomic.AddUint64(&m.usageUpdateFailures, 1)
}

// IncScrape increments the scrape counter.
func (m *InMemoryRecorder) IncScrape(status string) {
	m.inc(m.scrapes, status)
}

// IncJobPublished increments the job published counter.
func (m *InMemoryRecorder) IncJobPublished(status string) {
	m.inc(m.jobsPublished, status)
}

// IncJobProcessed increments the job processed counter.
func (m *InMemoryRecorder) IncJobProcessed(status string) {
	m.inc(m.jobsProcessed, status)
}

// ObserveJobBatchSize records a worker batch.
func (m *InMemoryRecorder) ObserveJobBatchSize(size int) {
	atomic.AddUint64(&m.jobBatchCount, 1)
	atomic.AddUint64(&m.jobBatchItems, uint64(size))
}

// SetJobQueueDepth records the pending + lag count of the job stream.
func (m *InMemoryRecorder) SetJobQueueDepth(depth int64) {
	atomic.StoreInt64(&m.jobQueueDepth, depth)
}
