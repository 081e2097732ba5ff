package orderid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIsUniqueAndWellFormed(t *testing.T) {
	g, err := NewGenerator(7)
	require.NoError(t, err)

	var mu sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				id, err := g.Next()
				assert.NoError(t, err)
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
				assert.True(t, Valid(id), id)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1600)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("ORD-1234567890"))
	assert.False(t, Valid("ORD-"))
	assert.False(t, Valid("ORD-12a"))
	assert.False(t, Valid("1234"))
	assert.False(t, Valid("NA"))
}
