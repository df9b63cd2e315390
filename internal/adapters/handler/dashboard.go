package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthCheck pings one backing service
type HealthCheck func(ctx context.Context) error

// ClientCounter reports connected operator consoles
type ClientCounter interface {
	ClientCount() int
}

// DashboardConfig configures the ops endpoints
type DashboardConfig struct {
	Version       string
	DiskPath      string
	DiskThreshold float64 // watchdog purge threshold, percent
	CPUSample     time.Duration
	Checks        map[string]HealthCheck // e.g. "mariadb", "redis", "amqp"
	ConnectedHub  ClientCounter          // optional
	StartedAt     time.Time
}

// DashboardHandler handles ops API requests
type DashboardHandler struct {
	cfg DashboardConfig
}

// NewDashboardHandler creates a new dashboard handler instance
func NewDashboardHandler(cfg DashboardConfig) *DashboardHandler {
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	if cfg.DiskThreshold <= 0 {
		cfg.DiskThreshold = 70
	}
	if cfg.CPUSample <= 0 {
		cfg.CPUSample = time.Second
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	return &DashboardHandler{cfg: cfg}
}

// Health is the unauthenticated liveness check
// GET /
func (h *DashboardHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewSuccessResponse(map[string]string{
		"service": "crm-whatsapp",
		"version": h.cfg.Version,
	}))
}

// ============================================================================
// System Health & Metrics
// ============================================================================

// SystemMetricsResponse represents system health data
type SystemMetricsResponse struct {
	CPUPercent        float64 `json:"cpu_percent"`
	RAMUsedGB         float64 `json:"ram_used_gb"`
	RAMTotalGB        float64 `json:"ram_total_gb"`
	RAMPercent        float64 `json:"ram_percent"`
	DiskUsedGB        float64 `json:"disk_used_gb"`
	DiskTotalGB       float64 `json:"disk_total_gb"`
	DiskPercent       float64 `json:"disk_percent"`
	GoroutinesCount   int     `json:"goroutines_count"`
	WatchdogActive    bool    `json:"watchdog_active"`
	WatchdogThreshold float64 `json:"watchdog_threshold"`
	DiskWarningLevel  string  `json:"disk_warning_level"` // "safe" | "warning" | "critical"
}

// GetSystemMetrics returns current system health metrics
// GET /api/system/metrics
func (h *DashboardHandler) GetSystemMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// CPU usage averaged over the sample window
	var cpuPercent float64
	if cpuPercents, err := cpu.PercentWithContext(ctx, h.cfg.CPUSample, false); err == nil && len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}

	var ramUsedGB, ramTotalGB, ramPercent float64
	if memStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		ramUsedGB = bytesToGB(memStat.Used)
		ramTotalGB = bytesToGB(memStat.Total)
		ramPercent = memStat.UsedPercent
	}

	var diskUsedGB, diskTotalGB, diskPercent float64
	if diskStat, err := disk.UsageWithContext(ctx, h.cfg.DiskPath); err == nil {
		diskUsedGB = bytesToGB(diskStat.Used)
		diskTotalGB = bytesToGB(diskStat.Total)
		diskPercent = diskStat.UsedPercent
	}

	response := SystemMetricsResponse{
		CPUPercent:        roundTo2Decimals(cpuPercent),
		RAMUsedGB:         roundTo2Decimals(ramUsedGB),
		RAMTotalGB:        roundTo2Decimals(ramTotalGB),
		RAMPercent:        roundTo2Decimals(ramPercent),
		DiskUsedGB:        roundTo2Decimals(diskUsedGB),
		DiskTotalGB:       roundTo2Decimals(diskTotalGB),
		DiskPercent:       roundTo2Decimals(diskPercent),
		GoroutinesCount:   runtime.NumGoroutine(),
		WatchdogActive:    diskPercent > h.cfg.DiskThreshold,
		WatchdogThreshold: h.cfg.DiskThreshold,
		DiskWarningLevel:  diskWarningLevel(diskPercent, h.cfg.DiskThreshold),
	}

	slog.Debug("System metrics retrieved",
		"cpu", cpuPercent,
		"disk_percent", diskPercent,
		"watchdog_active", response.WatchdogActive,
	)

	writeJSON(w, http.StatusOK, NewSuccessResponse(response))
}

// ============================================================================
// System Status
// ============================================================================

// DependencyStatus is the result of one health check
type DependencyStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SystemStatusResponse represents overall system status
type SystemStatusResponse struct {
	Online           bool               `json:"online"`
	Uptime           string             `json:"uptime"`
	Version          string             `json:"version"`
	OperatorConsoles int                `json:"operator_consoles"`
	Dependencies     []DependencyStatus `json:"dependencies"`
}

// GetStatus pings every dependency; online is false when any check fails
// GET /api/status
func (h *DashboardHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.cfg.Checks))
	for name := range h.cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	response := SystemStatusResponse{
		Online:       true,
		Uptime:       formatDuration(time.Since(h.cfg.StartedAt)),
		Version:      h.cfg.Version,
		Dependencies: make([]DependencyStatus, 0, len(names)),
	}
	for _, name := range names {
		dep := DependencyStatus{Name: name, OK: true}
		if err := h.cfg.Checks[name](ctx); err != nil {
			dep.OK = false
			dep.Error = err.Error()
			response.Online = false
			slog.Warn("Dependency check failed", "dependency", name, "error", err)
		}
		response.Dependencies = append(response.Dependencies, dep)
	}
	if h.cfg.ConnectedHub != nil {
		response.OperatorConsoles = h.cfg.ConnectedHub.ClientCount()
	}

	status := http.StatusOK
	if !response.Online {
		status = http.StatusServiceUnavailable
	}
	resp := NewSuccessResponse(response)
	resp.Code = status
	writeJSON(w, status, resp)
}

// ============================================================================
// Helpers
// ============================================================================

func bytesToGB(b uint64) float64 {
	return float64(b) / 1024 / 1024 / 1024
}

func roundTo2Decimals(val float64) float64 {
	return float64(int(val*100)) / 100
}

// diskWarningLevel is "warning" from the purge threshold and "critical" ten points above it
func diskWarningLevel(percent, threshold float64) string {
	switch {
	case percent < threshold:
		return "safe"
	case percent < threshold+10:
		return "warning"
	default:
		return "critical"
	}
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 24 {
		days := hours / 24
		hours = hours % 24
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}

	return fmt.Sprintf("%dh %dm", hours, minutes)
}
