package chronicle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChapterLocker_SerializesSameChapter(t *testing.T) {
	locker := NewChapterLocker()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("C1")
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, locker.size())
}

func TestChapterLocker_DifferentChaptersDoNotBlock(t *testing.T) {
	locker := NewChapterLocker()

	unlockA := locker.Lock("A")
	done := make(chan struct{})
	go func() {
		unlockB := locker.Lock("B")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock of another chapter blocked")
	}
	assert.Equal(t, 1, locker.size())

	unlockA()
	unlockA() // повторный вызов безопасен
	assert.Equal(t, 0, locker.size())
}
