package internal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerial_Order(t *testing.T) {
	var s Serial
	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		i := i
		s.Go(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()
	require.Len(t, got, 1000)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestSerial_GoNeverBlocks(t *testing.T) {
	var s Serial
	release := make(chan struct{})
	s.Go(func() { <-release })
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100000; i++ {
			s.Go(func() {})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Go blocked behind stuck function")
	}
	assert.Equal(t, 100000, s.Len())
	close(release)
	assert.Eventually(t, func() bool { return s.Len() == 0 }, 5*time.Second, time.Millisecond)
}
