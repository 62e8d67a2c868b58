package nw_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gox/netio/nw"
)

func TestWriteQueueFIFO(t *testing.T) {
	wq := nw.NewWriteQueue(0)

	ok, kick := wq.Push([]byte("aa"))
	require.True(t, ok)
	require.True(t, kick)

	ok, kick = wq.Push([]byte("bbb"))
	require.True(t, ok)
	require.False(t, kick) // 已有写操作在飞

	require.Equal(t, 5, wq.Pending())
	require.Equal(t, 2, wq.Len())

	data, tag := wq.Front()
	require.Equal(t, []byte("aa"), data)
	require.Equal(t, 2, tag)

	data, _ = wq.Shift()
	require.Equal(t, []byte("bbb"), data)
	require.Equal(t, 3, wq.Pending())

	data, _ = wq.Shift()
	require.Nil(t, data)
	require.Equal(t, 0, wq.Pending())

	// 队列排空后下一次 Push 重新拉起写操作
	_, kick = wq.Push([]byte("c"))
	require.True(t, kick)
}

func TestWriteQueueHighWater(t *testing.T) {
	wq := nw.NewWriteQueue(8)

	ok, _ := wq.Push([]byte("12345678"))
	require.True(t, ok)

	ok, kick := wq.Push([]byte("x"))
	require.False(t, ok)
	require.False(t, kick)
	require.Equal(t, 8, wq.Pending())

	wq.Shift()

	ok, _ = wq.Push([]byte("x"))
	require.True(t, ok)
}

func TestWriteQueueClear(t *testing.T) {
	wq := nw.NewWriteQueue(0)

	wq.Push([]byte("aa"))
	wq.Push([]byte("bb"))
	wq.Clear()

	require.Equal(t, 0, wq.Pending())
	require.Equal(t, 0, wq.Len())

	data, tag := wq.Front()
	require.Nil(t, data)
	require.Equal(t, -1, tag)
}
