package report

import (
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/loykin/healthgate/internal/service"
	"github.com/loykin/healthgate/internal/supervisor"
)

// Resources is a point-in-time sample of host CPU, memory, and disk usage.
type Resources struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryTotal   uint64    `json:"memory_total"`
	MemoryUsed    uint64    `json:"memory_used"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskPath      string    `json:"disk_path"`
	DiskTotal     uint64    `json:"disk_total"`
	DiskUsed      uint64    `json:"disk_used"`
	DiskPercent   float64   `json:"disk_percent"`
	SampledAt     time.Time `json:"sampled_at"`
}

// Snapshot combines all service states with a host resource sample.
type Snapshot struct {
	Services  []service.State `json:"services"`
	Resources Resources       `json:"resources"`
}

// Reporter produces snapshots. Pure reads: it never mutates supervisor
// state and is safe to call concurrently with start/stop.
type Reporter struct {
	sup      *supervisor.Supervisor
	diskPath string
}

func New(sup *supervisor.Supervisor, diskPath string) *Reporter {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Reporter{sup: sup, diskPath: diskPath}
}

// Snapshot returns service states plus host resources. Sampling failures
// leave the corresponding fields zero rather than failing the snapshot.
func (r *Reporter) Snapshot() Snapshot {
	snap := Snapshot{
		Services:  r.sup.StatusAll(),
		Resources: r.sampleResources(),
	}
	return snap
}

func (r *Reporter) sampleResources() Resources {
	res := Resources{DiskPath: r.diskPath, SampledAt: time.Now()}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		res.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		res.MemoryTotal = vm.Total
		res.MemoryUsed = vm.Used
		res.MemoryPercent = vm.UsedPercent
	}
	if du, err := disk.Usage(r.diskPath); err == nil {
		res.DiskTotal = du.Total
		res.DiskUsed = du.Used
		res.DiskPercent = du.UsedPercent
	}
	return res
}
