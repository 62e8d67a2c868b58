package nw

import "sync"

// wqItem 写队列元素
//   - tag 由具体传输解释 (websocket 帧类型、载荷长度等), 字节流传输为载荷长度
type wqItem struct {
	tag  int
	data []byte
}

// WriteQueue 单个连接的待发送队列
//
// FIFO; 任意时刻最多一个写操作在飞, 队首缓冲只有在完整发送确认后才会出队。
// 队列达到高水位后 Push 被拒绝, 由持有者决定上报方式。
type WriteQueue struct {
	mtx       sync.Mutex
	items     []wqItem
	pending   int
	inflight  bool
	highWater int
}

// NewWriteQueue 创建写队列
//   - highWater <= 0 时使用 DEFAULT_HIGH_WATER
func NewWriteQueue(highWater int) *WriteQueue {
	if highWater <= 0 {
		highWater = DEFAULT_HIGH_WATER
	}

	return &WriteQueue{
		highWater: highWater,
	}
}

// Push 入队
//   - 返回值1: 是否入队成功, 超过高水位时为 false
//   - 返回值2: 是否需要发起一次写操作 (此前没有写操作在飞)
func (this_ *WriteQueue) Push(data []byte) (bool, bool) {
	return this_.PushTag(len(data), data)
}

func (this_ *WriteQueue) PushTag(tag int, data []byte) (bool, bool) {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	if this_.pending+len(data) > this_.highWater {
		return false, false
	}

	this_.items = append(this_.items, wqItem{tag: tag, data: data})
	this_.pending += len(data)

	if this_.inflight {
		return true, false
	}

	this_.inflight = true
	return true, true
}

// Front 队首缓冲
//   - 队列为空时返回 (nil, -1)
func (this_ *WriteQueue) Front() ([]byte, int) {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	if len(this_.items) == 0 {
		return nil, -1
	}

	return this_.items[0].data, this_.items[0].tag
}

// Shift 确认队首已完整发送并出队, 返回下一个待发送缓冲
//   - 队列为空时清除在飞标记并返回 (nil, -1)
func (this_ *WriteQueue) Shift() ([]byte, int) {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	if len(this_.items) > 0 {
		this_.pending -= len(this_.items[0].data)
		this_.items[0].data = nil
		this_.items = this_.items[1:]
	}

	if len(this_.items) == 0 {
		this_.inflight = false
		return nil, -1
	}

	return this_.items[0].data, this_.items[0].tag
}

// Pending 待发送字节数
func (this_ *WriteQueue) Pending() int {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()
	return this_.pending
}

// Len 待发送缓冲个数
func (this_ *WriteQueue) Len() int {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()
	return len(this_.items)
}

func (this_ *WriteQueue) Clear() {
	this_.mtx.Lock()
	this_.items = nil
	this_.pending = 0
	this_.inflight = false
	this_.mtx.Unlock()
}
