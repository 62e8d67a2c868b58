package nw_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gox/netio/nw"
)

type svcRecorder struct {
	nw.ServiceEvent

	mtx    sync.Mutex
	events []string
	idle   int64
}

func (this_ *svcRecorder) record(name string) {
	this_.mtx.Lock()
	this_.events = append(this_.events, name)
	this_.mtx.Unlock()
}

func (this_ *svcRecorder) snapshot() []string {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()
	return append([]string(nil), this_.events...)
}

func (this_ *svcRecorder) OnThreadStart(*nw.Service) { this_.record("thread_start") }
func (this_ *svcRecorder) OnThreadStop(*nw.Service)  { this_.record("thread_stop") }
func (this_ *svcRecorder) OnStarted(*nw.Service)     { this_.record("started") }
func (this_ *svcRecorder) OnStopped(*nw.Service)     { this_.record("stopped") }

func (this_ *svcRecorder) OnIdle(*nw.Service) {
	atomic.AddInt64(&this_.idle, 1)
}

func TestServiceLifecycle(t *testing.T) {
	rec := &svcRecorder{}
	svc := nw.NewService(nil, rec)

	require.False(t, svc.IsStarted())
	require.True(t, svc.Start())
	require.True(t, svc.IsStarted())
	require.False(t, svc.Start()) // 已启动

	require.Equal(t, []string{"thread_start", "started"}, rec.snapshot())

	require.True(t, svc.Stop())
	require.False(t, svc.Stop()) // 已停止
	require.False(t, svc.IsStarted())

	require.Equal(t, []string{"thread_start", "started", "stopped", "thread_stop"}, rec.snapshot())
}

func TestServiceRestart(t *testing.T) {
	rec := &svcRecorder{}
	svc := nw.NewService(nil, rec)

	for i := 0; i < 3; i++ {
		require.True(t, svc.Start())
		require.True(t, svc.Stop())
	}

	want := []string{}
	for i := 0; i < 3; i++ {
		want = append(want, "thread_start", "started", "stopped", "thread_stop")
	}
	require.Equal(t, want, rec.snapshot())
}

func TestServicePost(t *testing.T) {
	svc := nw.NewService(nil, nil)
	require.True(t, svc.Start())
	defer svc.Stop()

	done := make(chan struct{})
	require.True(t, svc.Post(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task not executed")
	}
}

func TestServicePostOrder(t *testing.T) {
	svc := nw.NewService(nil, nil)
	require.True(t, svc.Start())
	defer svc.Stop()

	var (
		mtx sync.Mutex
		got []int
	)

	done := make(chan struct{})

	for i := 0; i < 100; i++ {
		n := i
		svc.Post(func() {
			mtx.Lock()
			got = append(got, n)
			mtx.Unlock()

			if n == 99 {
				close(done)
			}
		})
	}

	<-done

	mtx.Lock()
	defer mtx.Unlock()
	require.Len(t, got, 100)
	for i, n := range got {
		require.Equal(t, i, n)
	}
}

func TestServiceDispatchInline(t *testing.T) {
	svc := nw.NewService(nil, nil)
	require.True(t, svc.Start())
	defer svc.Stop()

	inline := make(chan bool, 1)

	svc.Post(func() {
		// worker 协程上 Dispatch 就地执行
		ran := false
		svc.Dispatch(func() { ran = true })
		inline <- ran
	})

	select {
	case ran := <-inline:
		require.True(t, ran)
	case <-time.After(time.Second):
		t.Fatal("task not executed")
	}
}

func TestServiceStopAfterPost(t *testing.T) {
	svc := nw.NewService(nil, nil)
	require.True(t, svc.Start())

	var count int64

	for i := 0; i < 50; i++ {
		svc.Post(func() { atomic.AddInt64(&count, 1) })
	}

	require.True(t, svc.Stop())

	// Stop 排空已入队任务
	require.Equal(t, int64(50), atomic.LoadInt64(&count))

	// 停止后 Post 失败
	require.False(t, svc.Post(func() {}))
}

func TestServicePolling(t *testing.T) {
	rec := &svcRecorder{}
	svc := nw.NewService(&nw.ServiceConfig{Polling: true}, rec)

	require.True(t, svc.Start())

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&rec.idle) > 0
	}, time.Second, time.Millisecond)

	done := make(chan struct{})
	svc.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task not executed in polling mode")
	}

	require.True(t, svc.Stop())
}

func TestServiceWorkerPool(t *testing.T) {
	svc := nw.NewService(&nw.ServiceConfig{Workers: 4}, nil)
	require.True(t, svc.Start())

	var count int64
	var wg sync.WaitGroup

	wg.Add(200)
	for i := 0; i < 200; i++ {
		svc.Post(func() {
			atomic.AddInt64(&count, 1)
			wg.Done()
		})
	}

	wg.Wait()
	require.Equal(t, int64(200), atomic.LoadInt64(&count))
	require.True(t, svc.Stop())
}
