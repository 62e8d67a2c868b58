package nw

import "sync"

// strand 串行任务队列
//
// 同一 strand 上的任务按投递顺序执行且互不重叠, 即使 Service 有多个 worker。
// 每个会话持有一个 strand, 保证该会话的回调序列化。
type strand struct {
	svc     *Service
	mtx     sync.Mutex
	queue   []func()
	running bool
}

func newStrand(svc *Service) *strand {
	return &strand{svc: svc}
}

// Post 投递任务
func (this_ *strand) Post(task func()) {
	if task == nil {
		return
	}

	this_.mtx.Lock()
	this_.queue = append(this_.queue, task)
	if this_.running {
		this_.mtx.Unlock()
		return
	}

	this_.running = true
	this_.mtx.Unlock()

	if !this_.svc.Post(this_.drain) {
		// 服务停止中, 任务仍需执行 (断开回调依赖这条路径)
		go this_.drain()
	}
}

func (this_ *strand) drain() {
	for {
		this_.mtx.Lock()
		if len(this_.queue) == 0 {
			this_.running = false
			this_.mtx.Unlock()
			return
		}

		task := this_.queue[0]
		this_.queue[0] = nil
		this_.queue = this_.queue[1:]
		this_.mtx.Unlock()

		this_.svc.run(task)
	}
}
