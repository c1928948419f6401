package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	uploadsTotal       atomic.Uint64
	uploadFailedTotal  atomic.Uint64
	rowsIngestedTotal  atomic.Uint64
	rowsDeletedTotal   atomic.Uint64
	sweepRunsTotal     atomic.Uint64
	sweepDeletedTotal  atomic.Uint64
	catalogImagesTotal atomic.Uint64

	uploadDuration = newHistogram([]float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000})
)

// IncUpload records a stored upload and the number of rows it carried.
func IncUpload(rows int) {
	uploadsTotal.Add(1)
	if rows > 0 {
		rowsIngestedTotal.Add(uint64(rows))
	}
}

// IncUploadFailed increments the rejected-upload counter.
func IncUploadFailed() {
	uploadFailedTotal.Add(1)
}

// AddRowsDeleted records rows removed by a delete request.
func AddRowsDeleted(n int) {
	if n > 0 {
		rowsDeletedTotal.Add(uint64(n))
	}
}

// IncSweep records one retention sweep run and the uploads it removed.
func IncSweep(deleted int64) {
	sweepRunsTotal.Add(1)
	if deleted > 0 {
		sweepDeletedTotal.Add(uint64(deleted))
	}
}

// IncCatalogImage increments the stored product image counter.
func IncCatalogImage() {
	catalogImagesTotal.Add(1)
}

// ObserveUploadDurationMs records an upload duration in milliseconds.
func ObserveUploadDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	uploadDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "rowshare_uploads_total", "Total spreadsheets stored", uploadsTotal.Load())
	writeCounter(&buf, "rowshare_upload_failed_total", "Total spreadsheets rejected", uploadFailedTotal.Load())
	writeCounter(&buf, "rowshare_rows_ingested_total", "Total rows ingested", rowsIngestedTotal.Load())
	writeCounter(&buf, "rowshare_rows_deleted_total", "Total rows deleted", rowsDeletedTotal.Load())
	writeCounter(&buf, "rowshare_sweep_runs_total", "Total retention sweeps run", sweepRunsTotal.Load())
	writeCounter(&buf, "rowshare_sweep_deleted_total", "Total uploads removed by retention sweeps", sweepDeletedTotal.Load())
	writeCounter(&buf, "catalog_images_total", "Total product images stored", catalogImagesTotal.Load())
	writeHistogram(&buf, "rowshare_upload_duration_ms", "Upload handling duration in milliseconds", uploadDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	// counts are per-bucket; writeHistogram accumulates them.
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the elapsed time since start in milliseconds.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
