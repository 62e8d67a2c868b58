package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeMapBasic(t *testing.T) {
	m := NewSafeMap[string, int]()

	m.Set("a", 1)
	m.Set("b", 2)

	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = m.Get("missing")
	require.False(t, ok)

	require.Equal(t, 2, m.Count())

	m.Remove("a")
	require.Equal(t, 1, m.Count())

	m.Clear()
	require.Equal(t, 0, m.Count())
}

func TestSafeMapRange(t *testing.T) {
	m := NewSafeMap[int, string]()

	for i := 0; i < 10; i++ {
		m.Set(i, "v")
	}

	count := 0
	m.Range(func(k int, v string) bool {
		count++
		return true
	})
	require.Equal(t, 10, count)

	// 返回 false 提前结束
	count = 0
	m.Range(func(k int, v string) bool {
		count++
		return false
	})
	require.Equal(t, 1, count)

	require.Len(t, m.Values(), 10)
}

func TestSafeMapConcurrent(t *testing.T) {
	m := NewSafeMap[int, int]()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Set(base*100+j, j)
			}
		}(i)
	}

	wg.Wait()
	require.Equal(t, 800, m.Count())
}
