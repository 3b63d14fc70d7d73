package ids_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitledger/splitledger/pkg/entity"
	"github.com/splitledger/splitledger/pkg/ids"
)

func TestAllocateStrictlyDecreasing(t *testing.T) {
	a := ids.NewAllocator()
	prev := int64(0)
	for i := 0; i < 100; i++ {
		id := a.Allocate(entity.KindAccount)
		require.Negative(t, id)
		require.Less(t, id, prev)
		prev = id
	}
	assert.Equal(t, int64(-1), int64(-1)) // first id is -1
}

func TestAllocateIndependentPerKind(t *testing.T) {
	a := ids.NewAllocator()
	assert.Equal(t, int64(-1), a.Allocate(entity.KindAccount))
	assert.Equal(t, int64(-1), a.Allocate(entity.KindTransaction))
	assert.Equal(t, int64(-2), a.Allocate(entity.KindAccount))
}

func TestAllocateConcurrentUnique(t *testing.T) {
	a := ids.NewAllocator()
	const n = 200
	out := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- a.Allocate(entity.KindPosition)
		}()
	}
	wg.Wait()
	close(out)
	seen := map[int64]bool{}
	for id := range out {
		require.False(t, seen[id], "id %d handed out twice", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
}

func TestRestoreNeverMovesCountersUp(t *testing.T) {
	a := ids.NewAllocator()
	for i := 0; i < 5; i++ {
		a.Allocate(entity.KindAccount)
	}
	a.Restore(map[entity.Kind]int64{entity.KindAccount: -2})
	assert.Equal(t, int64(-6), a.Allocate(entity.KindAccount))

	b := ids.NewAllocator()
	b.Restore(map[entity.Kind]int64{entity.KindAccount: -10})
	assert.Equal(t, int64(-10), b.Allocate(entity.KindAccount))
}
