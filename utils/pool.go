package utils

import "sync"

// Pool 对象池
//
// Pool 用于复用对象, 减少内存分配和垃圾回收的开销
// 使用 sync.Pool 来实现, 归还时通过 reset 回调重置对象
type Pool[T any] struct {
	pool  sync.Pool
	reset func(*T)
}

// NewPool 创建对象池
//   - reset: 归还对象时的重置回调, 可以为 nil
func NewPool[T any](reset func(*T)) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return new(T)
			},
		},
		reset: reset,
	}
}

// Get 从池中获取一个对象
func (this_ *Pool[T]) Get() *T {
	return this_.pool.Get().(*T)
}

// Put 归还对象到池中
//   - 归还 nil 时什么都不做
func (this_ *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}

	if this_.reset != nil {
		this_.reset(v)
	}

	this_.pool.Put(v)
}
