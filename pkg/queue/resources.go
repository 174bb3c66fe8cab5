package queue

import (
	"sync"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// ResourceSampler reports the host's current CPU/memory/disk
// utilization for §4.4 step 1's resource throttle. CPU utilization
// requires a delta between two /proc/stat reads, so the sampler keeps
// the previous sample and reports 0% on its first call.
type ResourceSampler struct {
	fs           procfs.FS
	downloadsDir string

	mu         sync.Mutex
	haveLast   bool
	lastCPU    procfs.CPUStat
	lastSample time.Time
}

// NewResourceSampler opens the default /proc mount. downloadsDir is
// the filesystem whose free space is sampled for the disk threshold.
func NewResourceSampler(downloadsDir string) (*ResourceSampler, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &ResourceSampler{fs: fs, downloadsDir: downloadsDir}, nil
}

// Usage is one CPU/memory/disk utilization snapshot, each a
// percentage in [0, 100].
type Usage struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// Sample reports current utilization. Errors reading any one metric
// leave that field at 0 rather than failing the whole call, since a
// sampling hiccup should not permanently block the scheduler.
func (r *ResourceSampler) Sample() Usage {
	var u Usage
	u.CPUPercent = r.cpuPercent()
	u.MemoryPercent = r.memoryPercent()
	u.DiskPercent = r.diskPercent()
	return u
}

func (r *ResourceSampler) cpuPercent() float64 {
	stat, err := r.fs.Stat()
	if err != nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cur := stat.CPUTotal
	if !r.haveLast {
		r.lastCPU, r.lastSample, r.haveLast = cur, now, true
		return 0
	}

	prev := r.lastCPU
	r.lastCPU, r.lastSample = cur, now

	idleDelta := cur.Idle - prev.Idle
	totalDelta := (cur.User - prev.User) + (cur.Nice - prev.Nice) + (cur.System - prev.System) +
		(cur.Idle - prev.Idle) + (cur.Iowait - prev.Iowait) + (cur.IRQ - prev.IRQ) +
		(cur.SoftIRQ - prev.SoftIRQ) + (cur.Steal - prev.Steal)
	if totalDelta <= 0 {
		return 0
	}
	busy := 1 - idleDelta/totalDelta
	if busy < 0 {
		busy = 0
	}
	return busy * 100
}

func (r *ResourceSampler) memoryPercent() float64 {
	mem, err := r.fs.Meminfo()
	if err != nil || mem.MemTotal == nil || *mem.MemTotal == 0 {
		return 0
	}
	free := uint64(0)
	if mem.MemAvailable != nil {
		free = *mem.MemAvailable
	} else if mem.MemFree != nil {
		free = *mem.MemFree
	}
	used := *mem.MemTotal - free
	return float64(used) / float64(*mem.MemTotal) * 100
}

func (r *ResourceSampler) diskPercent() float64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(r.downloadsDir, &stat); err != nil {
		return 0
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	if total == 0 {
		return 0
	}
	return float64(total-free) / float64(total) * 100
}
