package handler

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/recast/recast/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeLabeled(w, "recast_repurpose_requests_total", snap.RepurposeRequests, "status")
	writeLabeled(w, "recast_generations_total", snap.Generations, "platform", "status")
	writeMetric(w, "recast_generation_duration_seconds_count %d\n", snap.GenerationDurationCount)
	writeMetric(w, "recast_generation_duration_seconds_sum %.6f\n", float64(snap.GenerationDurationTotalNs)/1e9)
	writeMetric(w, "recast_usage_update_failures_total %d\n", snap.UsageUpdateFailures)

	writeLabeled(w, "recast_scrapes_total", snap.Scrapes, "status")

	writeLabeled(w, "recast_jobs_published_total", snap.JobsPublished, "status")
	writeLabeled(w, "recast_jobs_processed_total", snap.JobsProcessed, "status")
	writeMetric(w, "recast_job_batches_total %d\n", snap.JobBatchCount)
	writeMetric(w, "recast_job_batch_items_total %d\n", snap.JobBatchItems)
	writeMetric(w, "recast_job_queue_depth %d\n", snap.JobQueueDepth)
}

// writeLabeled renders a counter family whose keys are label values
// joined by ':' in the order of labels.
func writeLabeled(w http.ResponseWriter, name string, counters map[string]uint64, labels ...string) {
	for _, key := range slices.Sorted(maps.Keys(counters)) {
		values := strings.SplitN(key, ":", len(labels))
		pairs := make([]string, 0, len(labels))
		for i, label := range labels {
			v := ""
			if i < len(values) {
				v = values[i]
			}
			pairs = append(pairs, fmt.Sprintf("%s=%q", label, v))
		}
		writeMetric(w, "%s{%s} %d\n", name, strings.Join(pairs, ","), counters[key])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
