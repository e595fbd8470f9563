package main

import (
	"math"
	"sort"
)

// reportedPercentiles are printed in this order.
var reportedPercentiles = []float64{50, 90, 99, 99.9}

// selectThreshold is the sample count above which percentiles use
// quickselect instead of a full sort.
const selectThreshold = 1000

type summary struct {
	Count       int
	Min         int64
	Max         int64
	Mean        int64
	Stddev      float64
	Percentiles map[float64]int64
}

func summarize(samples []int64) summary {
	s := summary{
		Count:       len(samples),
		Min:         math.MaxInt64,
		Percentiles: make(map[float64]int64),
	}
	if len(samples) == 0 {
		s.Min = 0
		return s
	}

	var sum int64
	for _, ns := range samples {
		if ns < s.Min {
			s.Min = ns
		}
		if ns > s.Max {
			s.Max = ns
		}
		sum += ns
	}
	s.Mean = sum / int64(len(samples))

	var sq float64
	mean := float64(sum) / float64(len(samples))
	for _, ns := range samples {
		d := float64(ns) - mean
		sq += d * d
	}
	s.Stddev = math.Sqrt(sq / float64(len(samples)))

	for _, p := range reportedPercentiles {
		s.Percentiles[p] = percentile(samples, p)
	}
	return s
}

// percentile returns the nearest-rank-below value of the pth percentile.
// samples is not modified.
func percentile(samples []int64, p float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	data := make([]int64, len(samples))
	copy(data, samples)

	k := int(float64(len(data)-1) * (p / 100.0))
	if k >= len(data) {
		k = len(data) - 1
	}
	if len(data) <= selectThreshold {
		sort.Slice(data, func(i, j int) bool { return data[i] < data[j] })
		return data[k]
	}
	return quickSelect(data, k)
}

// quickSelect returns the k-th smallest element, reordering arr.
func quickSelect(arr []int64, k int) int64 {
	left, right := 0, len(arr)-1
	for {
		if left == right {
			return arr[left]
		}
		pivotIndex := partition(arr, left, right)
		switch {
		case k == pivotIndex:
			return arr[k]
		case k < pivotIndex:
			right = pivotIndex - 1
		default:
			left = pivotIndex + 1
		}
	}
}

// partition places the middle element at its sorted position and returns it.
func partition(arr []int64, left, right int) int {
	pivotIndex := left + (right-left)/2
	pivot := arr[pivotIndex]
	arr[pivotIndex], arr[right] = arr[right], arr[pivotIndex]
	store := left
	for i := left; i < right; i++ {
		if arr[i] < pivot {
			arr[store], arr[i] = arr[i], arr[store]
			store++
		}
	}
	arr[store], arr[right] = arr[right], arr[store]
	return store
}

func countAbove(samples []int64, limit int64) int {
	n := 0
	for _, ns := range samples {
		if ns > limit {
			n++
		}
	}
	return n
}
