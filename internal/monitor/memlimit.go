package monitor

import (
	"runtime"

	"go.uber.org/zap"
)

// DefaultMemoryPressureFraction is the fraction of total RAM the queue's
// estimated footprint is compared against.
const DefaultMemoryPressureFraction = 0.90

// CheckMemoryBudget estimates the Block Queue's worst-case footprint
// (capacity × blockWidth × blockHeight × bytesPerPixel) and logs a warning
// if it would exceed fraction of detected system RAM. This is a sanity
// check for spec.md §5's bounded-memory property, not an enforcement
// mechanism — the channel capacity is what actually bounds memory.
// Adapted from the teacher's internal/tile/memlimit.go (ComputeMemoryLimit),
// narrowed from "compute a disk-spill threshold" to "warn once at startup."
func CheckMemoryBudget(log *zap.SugaredLogger, queueCapacity, blockBytes int, fraction float64) {
	totalRAM, err := totalSystemRAM()
	if err != nil {
		log.Debugf("cannot detect system RAM: %v; skipping memory budget check", err)
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	estimated := uint64(queueCapacity) * uint64(blockBytes)
	limit := uint64(float64(totalRAM) * fraction)

	log.Infof("system RAM: %.1f GB, estimated queue footprint: %.1f MB",
		float64(totalRAM)/(1024*1024*1024), float64(estimated)/(1024*1024))

	if estimated > limit {
		log.Warnf("block queue capacity (%d blocks, ~%.1f MB) may exceed %.0f%% of system RAM (%.1f GB); "+
			"consider a smaller queue capacity or block size",
			queueCapacity, float64(estimated)/(1024*1024), fraction*100, float64(totalRAM)/(1024*1024*1024))
	}
}
