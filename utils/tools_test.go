package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConditional(t *testing.T) {
	require.Equal(t, 1, Conditional(true, 1, 2))
	require.Equal(t, 2, Conditional(false, 1, 2))
	require.Equal(t, "a", Conditional(true, "a", "b"))
}

func TestGoroutineID(t *testing.T) {
	id := GoroutineID()
	require.Greater(t, id, int64(0))

	// 同一协程内稳定
	require.Equal(t, id, GoroutineID())

	// 不同协程不同
	ch := make(chan int64, 1)
	go func() {
		ch <- GoroutineID()
	}()
	require.NotEqual(t, id, <-ch)
}

func TestCloneBytes(t *testing.T) {
	src := []byte{1, 2, 3}
	dst := CloneBytes(src)

	require.Equal(t, src, dst)

	src[0] = 9
	require.Equal(t, byte(1), dst[0])

	require.Empty(t, CloneBytes(nil))
}

func TestPool(t *testing.T) {
	type buf struct {
		data []byte
	}

	p := NewPool[buf](func(b *buf) {
		b.data = b.data[:0]
	})

	b := p.Get()
	require.NotNil(t, b)

	b.data = append(b.data, 1, 2, 3)
	p.Put(b)

	b2 := p.Get()
	require.Empty(t, b2.data)

	p.Put(nil) // 归还 nil 不 panic
}

func TestPoolConcurrent(t *testing.T) {
	p := NewPool[int](nil)

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				v := p.Get()
				p.Put(v)
			}
		}()
	}

	wg.Wait()
}
