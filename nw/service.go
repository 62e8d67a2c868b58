package nw

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gox/netio/utils"
)

const (
	ServiceState_Stopped  int32 = 0 // 服务状态: 停止
	ServiceState_Starting int32 = 1 // 服务状态: 启动中
	ServiceState_Running  int32 = 2 // 服务状态: 运行
	ServiceState_Stopping int32 = 3 // 服务状态: 停止中
)

const TASK_QUEUE_SIZE = 1024 * 64 // 任务管道容量

// ServiceConfig 服务配置
type ServiceConfig struct {
	Workers int  `yaml:"workers" json:"workers,omitempty"` // worker 协程数, 默认 1
	Polling bool `yaml:"polling" json:"polling,omitempty"` // 轮询模式, 空转时触发 OnIdle
}

func (this_ *ServiceConfig) String() string {
	return utils.ToJson(this_)
}

// Service IO 服务
//
// 持有 worker 协程; 所有用户回调都在 worker 协程上执行。
// 各传输的服务端/客户端绑定到一个 Service, 完成事件经 Post 投递到这里。
type Service struct {
	id      string
	state   int32
	workers int
	polling bool
	event   IServiceEvent
	taskCh  chan func()
	gids    *utils.SafeMap[int64, bool] // worker 协程ID集, Dispatch 判定用
	alive   int32                       // 尚未退出循环的 worker 数
	wg      sync.WaitGroup
	mtx     sync.Mutex // 启动与停止互斥
}

// NewService 创建服务
//   - c 为 nil 时使用默认配置
//   - event 为 nil 时使用空实现
func NewService(c *ServiceConfig, event IServiceEvent) *Service {
	if c == nil {
		c = &ServiceConfig{}
	}

	if event == nil {
		event = &ServiceEvent{}
	}

	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Service{
		id:      uuid.NewString(),
		state:   ServiceState_Stopped,
		workers: workers,
		polling: c.Polling,
		event:   event,
		gids:    utils.NewSafeMap[int64, bool](),
	}
}

func (this_ *Service) ID() string {
	return this_.id
}

func (this_ *Service) Workers() int {
	return this_.workers
}

func (this_ *Service) IsStarted() bool {
	return atomic.LoadInt32(&this_.state) == ServiceState_Running
}

// Start 启动服务
//
// 阻塞直到所有 worker 进入循环且 OnStarted 已触发。
// 已启动时返回 false。
func (this_ *Service) Start() bool {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	if !atomic.CompareAndSwapInt32(&this_.state, ServiceState_Stopped, ServiceState_Starting) {
		return false
	}

	this_.taskCh = make(chan func(), TASK_QUEUE_SIZE)
	atomic.StoreInt32(&this_.alive, int32(this_.workers))

	readyCh := make(chan struct{}, this_.workers)
	startedCh := make(chan struct{})

	this_.wg.Add(this_.workers)
	for i := 0; i < this_.workers; i++ {
		go this_.workerLoop(i, readyCh, startedCh)
	}

	// 等待所有 worker 进入循环, OnStarted 先于任何任务触发
	for i := 0; i < this_.workers; i++ {
		<-readyCh
	}
	<-startedCh

	atomic.StoreInt32(&this_.state, ServiceState_Running)
	return true
}

// Stop 停止服务
//
// 关闭任务管道, 排空剩余任务并等待 worker 全部退出。
// 未启动时返回 false。
func (this_ *Service) Stop() bool {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	if !atomic.CompareAndSwapInt32(&this_.state, ServiceState_Running, ServiceState_Stopping) {
		return false
	}

	close(this_.taskCh)
	this_.wg.Wait()

	atomic.StoreInt32(&this_.state, ServiceState_Stopped)
	return true
}

// Restart 重启服务
func (this_ *Service) Restart() bool {
	this_.Stop()
	return this_.Start()
}

// Post 投递任务, 总是延迟到 worker 执行
//   - 服务停止后投递失败返回 false
func (this_ *Service) Post(task func()) (ok bool) {
	if task == nil {
		return false
	}

	state := atomic.LoadInt32(&this_.state)
	if state != ServiceState_Running && state != ServiceState_Stopping {
		return false
	}

	defer func() {
		// 停止过程中管道可能已关闭
		if err := recover(); err != nil {
			ok = false
		}
	}()

	this_.taskCh <- task
	return true
}

// Dispatch 投递任务
//   - 调用方已在 worker 协程时就地执行, 否则等价于 Post
func (this_ *Service) Dispatch(task func()) bool {
	if task == nil {
		return false
	}

	if _, onWorker := this_.gids.Get(utils.GoroutineID()); onWorker {
		this_.run(task)
		return true
	}

	return this_.Post(task)
}

// flush 等待当前已入队任务执行完毕
func (this_ *Service) flush() {
	done := make(chan struct{})
	if !this_.Post(func() { close(done) }) {
		return
	}
	<-done
}

func (this_ *Service) workerLoop(idx int, readyCh chan<- struct{}, startedCh chan struct{}) {
	defer this_.wg.Done()

	gid := utils.GoroutineID()
	this_.gids.Set(gid, true)
	defer this_.gids.Remove(gid)

	this_.event.OnThreadStart(this_)
	readyCh <- struct{}{}

	// worker 0 负责 OnStarted, 其余 worker 等它触发完
	if idx == 0 {
		this_.event.OnStarted(this_)
		close(startedCh)
	} else {
		<-startedCh
	}

	taskCh := this_.taskCh

	if this_.polling {
	poll:
		for {
			select {
			case task, active := <-taskCh:
				if !active {
					break poll
				}
				this_.run(task)

			default:
				this_.event.OnIdle(this_)
				runtime.Gosched()
			}
		}
	} else {
		for task := range taskCh {
			this_.run(task)
		}
	}

	// 最后一个退出循环的 worker 触发 OnStopped
	if atomic.AddInt32(&this_.alive, -1) == 0 {
		this_.event.OnStopped(this_)
	}

	this_.event.OnThreadStop(this_)
}

// run 执行任务, panic 转为 OnError, 不中断循环
func (this_ *Service) run(task func()) {
	defer func() {
		if err := recover(); err != nil {
			this_.event.OnError(this_, 0, CategoryService, fmt.Sprintf("task panic: %v", err))
		}
	}()

	task()
}
