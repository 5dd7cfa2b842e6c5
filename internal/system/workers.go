package system

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// memoryShare is the part of available memory frame canvases may take.
const memoryShare = 0.5

// canvasesPerWorker: one frame in work, one waiting for the encoder.
const canvasesPerWorker = 2

// DefaultWorkers returns the number of logical CPUs.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// MaxWorkersForFrame caps workers so that the canvases in flight for
// frames of width x height fit in half of the available memory.
func MaxWorkersForFrame(workers, width, height int) int {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Available == 0 {
		return workers
	}
	return capWorkers(workers, width, height, vm.Available)
}

func capWorkers(workers, width, height int, available uint64) int {
	perWorker := uint64(width) * uint64(height) * 4 * canvasesPerWorker
	if perWorker == 0 {
		return workers
	}
	limit := int(float64(available) * memoryShare / float64(perWorker))
	if limit < 1 {
		limit = 1
	}
	if workers > limit {
		return limit
	}
	return workers
}
