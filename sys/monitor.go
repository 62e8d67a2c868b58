package sys

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// Snapshot 某一时刻的系统负载
//   - 压测工具在全部发送结束后采样一次
type Snapshot struct {
	CpuPercent float64 `json:"cpu_percent"`
	MemTotal   uint64  `json:"mem_total"`
	MemUsed    uint64  `json:"mem_used"`
	NetSent    uint64  `json:"net_sent"` // 自启动以来的网络发送字节
	NetRecv    uint64  `json:"net_recv"`
}

// Collect 采样一次
//   - interval 为 CPU 使用率的观测窗口
func Collect(interval time.Duration) (*Snapshot, error) {
	v, err := cpu.Percent(interval, false)
	if err != nil {
		return nil, err
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		CpuPercent: v[0],
		MemTotal:   vm.Total,
		MemUsed:    vm.Used,
	}

	counters, err := psnet.IOCounters(false)
	if err == nil && len(counters) > 0 {
		snap.NetSent = counters[0].BytesSent
		snap.NetRecv = counters[0].BytesRecv
	}

	return snap, nil
}
