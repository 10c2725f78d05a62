package shard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("id%04d", i)
	}
	return out
}

func TestSplit_ExactPartition(t *testing.T) {
	tests := []struct {
		n         int
		workers   int
		wantSizes []int
	}{
		// step = 10/4 = 2, steps = 5: five shards of two, not a
		// ceil-based [3,3,2,2].
		{n: 10, workers: 4, wantSizes: []int{2, 2, 2, 2, 2}},
		// step = 10/3 = 3, steps = 3: last shard absorbs the remainder.
		{n: 10, workers: 3, wantSizes: []int{3, 3, 4}},
		{n: 5, workers: 1, wantSizes: []int{5}},
		// Short list: step forced to 1, fewer shards than requested.
		{n: 3, workers: 5, wantSizes: []int{1, 1, 1}},
		{n: 7, workers: 2, wantSizes: []int{3, 4}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_into_%d", tt.n, tt.workers), func(t *testing.T) {
			in := ids(tt.n)
			shards := Split(in, tt.workers)

			require.Len(t, shards, len(tt.wantSizes))
			var rejoined []string
			for i, s := range shards {
				assert.Len(t, s, tt.wantSizes[i])
				rejoined = append(rejoined, s...)
			}
			// Concatenation in shard order reproduces the input exactly.
			assert.Equal(t, in, rejoined)
		})
	}
}

func TestSplit_PartitionProperty(t *testing.T) {
	for n := 1; n <= 50; n++ {
		for workers := 1; workers <= 8; workers++ {
			in := ids(n)
			shards := Split(in, workers)

			total := 0
			var rejoined []string
			for _, s := range shards {
				require.NotEmpty(t, s)
				total += len(s)
				rejoined = append(rejoined, s...)
			}
			require.Equal(t, n, total, "n=%d workers=%d", n, workers)
			require.Equal(t, in, rejoined, "n=%d workers=%d", n, workers)
		}
	}
}

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, Split([]string(nil), 4))
}

func TestSplit_ZeroWorkersUsesCPUs(t *testing.T) {
	shards := Split(ids(100), 0)
	require.NotEmpty(t, shards)

	var rejoined []string
	for _, s := range shards {
		rejoined = append(rejoined, s...)
	}
	assert.Equal(t, ids(100), rejoined)
}
