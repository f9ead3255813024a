package iot

import (
	"fmt"
	"sync"

	bloomFilter "github.com/bits-and-blooms/bloom/v3"
)

// DuplicateFilter remembers recent uplink frame counters per device so a
// redelivered message can be dropped before any side effect.
type DuplicateFilter struct {
	mu                     sync.Mutex
	filters                map[string]*bloomFilter.BloomFilter
	capacity               uint
	duplicationProbability float64
	resetUsagePercentage   float32
}

func NewDuplicateFilter(capacity uint, duplicationProbability float64, resetUsagePercentage float32) *DuplicateFilter {
	if capacity == 0 {
		capacity = 1
	}
	return &DuplicateFilter{
		filters:                map[string]*bloomFilter.BloomFilter{},
		capacity:               capacity,
		duplicationProbability: duplicationProbability,
		resetUsagePercentage:   resetUsagePercentage,
	}
}

// Seen records the uplink and reports whether it was already recorded.
// Messages without a frame counter are never treated as duplicates.
func (f *DuplicateFilter) Seen(devEUI string, fCnt *uint32) bool {
	if fCnt == nil {
		return false
	}
	key := []byte(fmt.Sprintf("%s_%d", devEUI, *fCnt))

	f.mu.Lock()
	defer f.mu.Unlock()

	filter, ok := f.filters[devEUI]
	if !ok {
		filter = bloomFilter.NewWithEstimates(f.capacity, f.duplicationProbability)
		f.filters[devEUI] = filter
	}

	if filter.Test(key) {
		return true
	}
	f.resetIfFull(filter)
	filter.Add(key)
	return false
}

func (f *DuplicateFilter) resetIfFull(filter *bloomFilter.BloomFilter) {
	usage := float32(filter.ApproximatedSize()) / float32(f.capacity) * 100
	if usage >= f.resetUsagePercentage {
		filter.ClearAll()
	}
}
