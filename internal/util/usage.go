package util

import (
	"sync"
	"time"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// Usage is a CPU/memory snapshot of a running process.
type Usage struct {
	CPU float64 // percent of one core
	RSS uint64  // bytes
}

// UsageSampler reads process usage through gopsutil, at most once per
// interval. Between samples the previous snapshot is returned.
type UsageSampler struct {
	mu       sync.Mutex
	proc     *gopsutilprocess.Process
	interval time.Duration
	last     time.Time
	cached   Usage
	now      func() time.Time
}

// NewUsageSampler creates a sampler. A zero interval means one second.
func NewUsageSampler(interval time.Duration) *UsageSampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &UsageSampler{interval: interval, now: time.Now}
}

// Attach starts sampling pid.
func (s *UsageSampler) Attach(pid int) error {
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = proc
	s.last = time.Time{}
	s.cached = Usage{}
	return nil
}

// Detach stops sampling.
func (s *UsageSampler) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = nil
}

// Sample returns the current usage. fresh is false when the snapshot was
// served from cache or nothing is attached.
func (s *UsageSampler) Sample() (u Usage, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return Usage{}, false
	}
	now := s.now()
	if !s.last.IsZero() && now.Sub(s.last) < s.interval {
		return s.cached, false
	}
	s.last = now
	if cpu, err := s.proc.CPUPercent(); err == nil {
		s.cached.CPU = cpu
	}
	if mem, err := s.proc.MemoryInfo(); err == nil && mem != nil {
		s.cached.RSS = mem.RSS
	}
	return s.cached, true
}
