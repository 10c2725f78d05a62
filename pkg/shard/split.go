// Package shard partitions an ordered work list into contiguous
// near-equal shards for bounded parallel execution.
package shard

import "runtime"

// Split partitions items into contiguous shards for a requested
// parallelism degree n. When n <= 0 the degree resolves to the number
// of available CPUs.
//
// The step size is len(items)/n, floored, minimum 1; the final shard
// absorbs any remainder so the partition is exact: every item lands in
// exactly one shard and concatenating the shards in order reproduces
// the input.
//
// The effective shard count follows from the step size, not from n:
// a short list yields fewer shards than requested (step forced to 1),
// and a remainder-heavy division can yield more. Callers that need
// exactly n execution units should bound their worker pool separately.
func Split[T any](items []T, n int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if n <= 0 {
		n = runtime.NumCPU()
	}

	step := len(items) / n
	if step < 1 {
		step = 1
	}
	steps := len(items) / step

	shards := make([][]T, 0, steps)
	for i := 0; i < steps; i++ {
		lo := i * step
		hi := lo + step
		if i == steps-1 {
			hi = len(items)
		}
		shards = append(shards, items[lo:hi])
	}
	return shards
}
