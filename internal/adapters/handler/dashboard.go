// Package handler implements HTTP request handlers for the dashboard
package handler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"commerce-agent/internal/core/services"
)

const watchdogThreshold = 70.0

var appStartTime = time.Now()

// DashboardHandler serves health, host metrics and the AI kill switch
type DashboardHandler struct {
	db       *sql.DB
	redis    *redis.Client
	panic    *services.PanicMode
	diskPath string
	version  string
}

// NewDashboardHandler creates a new dashboard handler instance. db and rdb may be nil.
func NewDashboardHandler(db *sql.DB, rdb *redis.Client, panicMode *services.PanicMode, diskPath, version string) *DashboardHandler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &DashboardHandler{
		db:       db,
		redis:    rdb,
		panic:    panicMode,
		diskPath: diskPath,
		version:  version,
	}
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse represents liveness and dependency status
type HealthResponse struct {
	Online    bool              `json:"online"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
	AIPaused  bool              `json:"ai_paused"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// Health reports liveness. Dependency failures are reported, not fatal.
// GET /health
func (h *DashboardHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	if h.db != nil {
		checks["mariadb"] = statusText(h.db.PingContext(ctx))
	}
	if h.redis != nil {
		checks["redis"] = statusText(h.redis.Ping(ctx).Err())
	}

	writeJSON(w, http.StatusOK, NewSuccessResponse(HealthResponse{
		Online:    true,
		Uptime:    formatDuration(time.Since(appStartTime)),
		Version:   h.version,
		AIPaused:  h.panic.IsActive(),
		Checks:    checks,
		Timestamp: time.Now().UTC(),
	}))
}

func statusText(err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return "ok"
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

	// CPU usage (average over 1 second)
	var cpuPercent float64
	if cpuPercents, err := cpu.PercentWithContext(ctx, time.Second, false); err == nil && len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}

	var ramUsedGB, ramTotalGB, ramPercent float64
	if memStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		ramUsedGB = bytesToGB(memStat.Used)
		ramTotalGB = bytesToGB(memStat.Total)
		ramPercent = memStat.UsedPercent
	}

	var diskUsedGB, diskTotalGB, diskPercent float64
	if diskStat, err := disk.UsageWithContext(ctx, h.diskPath); err == nil {
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
		WatchdogActive:    diskPercent > watchdogThreshold,
		WatchdogThreshold: watchdogThreshold,
		DiskWarningLevel:  diskWarningLevel(diskPercent),
	}

	slog.Debug("System metrics retrieved",
		"cpu", cpuPercent,
		"disk_percent", diskPercent,
	)

	writeJSON(w, http.StatusOK, NewSuccessResponse(response))
}

// ============================================================================
// AI kill switch
// ============================================================================

// PanicRequest is the optional body of POST /api/ai/panic
type PanicRequest struct {
	Reason      string `json:"reason"`
	ActivatedBy string `json:"activated_by"`
}

// EnablePanic pauses every AI reply
// POST /api/ai/panic
func (h *DashboardHandler) EnablePanic(w http.ResponseWriter, r *http.Request) {
	var req PanicRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, BadRequestResponse("invalid JSON body"))
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}
	if req.ActivatedBy == "" {
		req.ActivatedBy = r.RemoteAddr
	}

	h.panic.Enable(req.Reason, req.ActivatedBy)
	writeJSON(w, http.StatusOK, NewSuccessResponse(h.panic.Status()))
}

// DisablePanic resumes AI replies
// DELETE /api/ai/panic
func (h *DashboardHandler) DisablePanic(w http.ResponseWriter, r *http.Request) {
	h.panic.Disable(r.RemoteAddr)
	writeJSON(w, http.StatusOK, NewSuccessResponse(h.panic.Status()))
}

// GetPanic returns the current switch state
// GET /api/ai/panic
func (h *DashboardHandler) GetPanic(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewSuccessResponse(h.panic.Status()))
}

// ============================================================================
// Helpers
// ============================================================================

func diskWarningLevel(percent float64) string {
	switch {
	case percent < 70:
		return "safe"
	case percent < 80:
		return "warning"
	default:
		return "critical"
	}
}

func bytesToGB(b uint64) float64 {
	return float64(b) / 1024 / 1024 / 1024
}

func roundTo2Decimals(val float64) float64 {
	return float64(int(val*100)) / 100
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
