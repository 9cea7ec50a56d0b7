package facade

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemHealth is the response shape of GetSystemHealth.
type SystemHealth struct {
	Timestamp         time.Time `json:"timestamp"`
	HealthScore       float64   `json:"health_score"`
	MetricsAvailable  bool      `json:"metrics_available"`
	CPUPercent        *float64  `json:"cpu_percent,omitempty"`
	MemoryUsedPercent *float64  `json:"memory_used_percent,omitempty"`
	DiskUsedPercent   *float64  `json:"disk_used_percent,omitempty"`
	OperationsActive  int       `json:"operations_active"`
	OperationsTotal   int       `json:"operations_total"`
	WebsocketClients  int       `json:"websocket_clients"`
}

// GetSystemHealth reports a weighted host-resource score:
// 0.3*cpu_ok + 0.4*memory_ok + 0.3*disk_ok, each component max(0, 100-usage%).
// When host metrics can't be read, it returns the neutral score 50 and
// clears MetricsAvailable rather than failing the call.
func (f *Facade) GetSystemHealth(ctx context.Context) SystemHealth {
	h := SystemHealth{
		Timestamp:        time.Now().UTC(),
		OperationsActive: len(f.manager.Active()),
		OperationsTotal:  len(f.manager.All()),
		WebsocketClients: f.hub.ClientCount(),
	}

	cpuPct, cpuErr := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	vmem, memErr := mem.VirtualMemoryWithContext(ctx)
	diskUsage, diskErr := disk.UsageWithContext(ctx, f.diskPath())

	if cpuErr != nil || memErr != nil || diskErr != nil || len(cpuPct) == 0 {
		h.MetricsAvailable = false
		h.HealthScore = 50
		return h
	}

	h.MetricsAvailable = true
	h.CPUPercent = &cpuPct[0]
	memPct := vmem.UsedPercent
	h.MemoryUsedPercent = &memPct
	diskPct := diskUsage.UsedPercent
	h.DiskUsedPercent = &diskPct

	cpuOK := healthComponent(cpuPct[0])
	memOK := healthComponent(memPct)
	diskOK := healthComponent(diskPct)
	h.HealthScore = 0.3*cpuOK + 0.4*memOK + 0.3*diskOK
	return h
}

func healthComponent(usagePercent float64) float64 {
	ok := 100 - usagePercent
	if ok < 0 {
		return 0
	}
	return ok
}

// diskPath returns the filesystem path get_system_health measures disk usage
// against. Defaults to "/" when the façade wasn't configured with a more
// specific organized-library path.
func (f *Facade) diskPath() string {
	if f.diskUsagePath != "" {
		return f.diskUsagePath
	}
	return "/"
}
