package service

import (
	"fmt"

	"github.com/The-Promised-Neverland/tsb/internal/config"
	"github.com/The-Promised-Neverland/tsb/internal/models"
	"github.com/The-Promised-Neverland/tsb/pkg/system"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Service reports facts about the receiving host.
type Service struct {
	cfg *config.Config
}

func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg: cfg,
	}
}

// FreeBytes reports the free space on the volume holding dir.
func (s *Service) FreeBytes(dir string) (uint64, error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to query disk usage for %s: %w", dir, err)
	}
	return usage.Free, nil
}

func (s *Service) Hostname() string {
	info, err := host.Info()
	if err != nil {
		return ""
	}
	return info.Hostname
}

// Health summarizes the receiver for GET /health.
func (s *Service) Health() models.HealthCheck {
	health := models.HealthCheck{
		Status:   "Healthy",
		Uptime:   system.Uptime(),
		Hostname: s.Hostname(),
	}
	if free, err := s.FreeBytes(s.cfg.ReceiveDir()); err == nil {
		health.DiskFree = free
	}
	return health
}

// HostMetrics is logged once at startup.
func (s *Service) HostMetrics() *models.HostMetrics {
	metrics := &models.HostMetrics{}
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		metrics.CPUUsage = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		metrics.MemoryUsage = memStat.UsedPercent
	}
	if diskStat, err := disk.Usage(s.cfg.ReceiveDir()); err == nil {
		metrics.DiskUsage = diskStat.UsedPercent
	}
	if hostInfo, err := host.Info(); err == nil {
		metrics.Hostname = hostInfo.Hostname
		metrics.OS = hostInfo.OS
		metrics.Uptime = hostInfo.Uptime
	}
	return metrics
}
