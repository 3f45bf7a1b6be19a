package obs

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/yanun0323/logs"
)

// MemoryReporter periodically snapshots runtime.MemStats and logs a
// heap/GC summary line, the same shape the reference stack's own runtime
// memory metric produces, retargeted to structured logging.
type MemoryReporter struct {
	prev, curr runtime.MemStats
	prevAt     time.Time
	currAt     time.Time
}

// Run logs a memory snapshot every interval until ctx is cancelled.
func (m *MemoryReporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Snapshot()
			m.Log()
		}
	}
}

// Snapshot captures the current runtime.MemStats against the previous one.
func (m *MemoryReporter) Snapshot() {
	m.prev, m.curr = m.curr, m.prev
	m.prevAt = m.currAt
	m.currAt = time.Now()

	runtime.ReadMemStats(&m.curr)

	if m.prevAt.IsZero() {
		m.prevAt = m.currAt
	}
}

// Log emits one structured log line summarizing the last snapshot.
func (m *MemoryReporter) Log() {
	dt := m.currAt.Sub(m.prevAt).Seconds()
	if dt <= 0 {
		dt = 1
	}

	allocGrow, allocUnit := bytesCarry(m.curr.TotalAlloc - m.prev.TotalAlloc)
	heapAlloc, heapUnit := bytesCarry(m.curr.HeapAlloc)
	heapInuse, inuseUnit := bytesCarry(m.curr.HeapInuse)
	rate, rateUnit := bytesCarryFloat(float64(m.curr.TotalAlloc-m.prev.TotalAlloc) / dt)
	gcTimes := uint64(m.curr.NumGC - m.prev.NumGC)
	stwMs := float64(m.curr.PauseTotalNs-m.prev.PauseTotalNs) / 1_000_000.0
	live := int64(m.curr.Mallocs) - int64(m.curr.Frees)

	logs.Infof("runtime memory: alloc_grow=%d%s alloc=%d%s inuse=%d%s alloc_rate=%s%s/s gc_times=%d gc_stw=%sms live_objects=%d",
		allocGrow, allocUnit, heapAlloc, heapUnit, heapInuse, inuseUnit,
		strconv.FormatFloat(rate, 'f', 2, 64), rateUnit, gcTimes,
		strconv.FormatFloat(stwMs, 'f', 4, 64), live,
	)
}

const carryThreshold = 1 << 15

func bytesCarry(value uint64) (uint64, string) {
	if value < carryThreshold {
		return value, "B"
	}
	value >>= 10
	if value < carryThreshold {
		return value, "KB"
	}
	value >>= 10
	if value < carryThreshold {
		return value, "MB"
	}
	return value >> 10, "GB"
}

func bytesCarryFloat(value float64) (float64, string) {
	if value < float64(carryThreshold) {
		return value, "B"
	}
	value /= 1024
	if value < float64(carryThreshold) {
		return value, "KB"
	}
	value /= 1024
	if value < float64(carryThreshold) {
		return value, "MB"
	}
	return value / 1024, "GB"
}
