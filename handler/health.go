package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"runtime"
	"syscall"
	"time"

	"github.com/mstgnz/hyperpay/infra/response"
	"github.com/mstgnz/hyperpay/provider"
)

// Gateway is what the health check needs from the HyperPay provider
type Gateway interface {
	provider.HealthChecker
	BreakerState() string
	Mode() string
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db          *sql.DB
	gateway     Gateway
	environment string
	startTime   time.Time
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status      string          `json:"status"`
	Version     string          `json:"version"`
	Timestamp   time.Time       `json:"timestamp"`
	Uptime      string          `json:"uptime"`
	Environment string          `json:"environment"`
	Database    *DatabaseHealth `json:"database"`
	Gateway     *GatewayHealth  `json:"gateway"`
	System      *SystemHealth   `json:"system"`
}

// DatabaseHealth represents database health status
type DatabaseHealth struct {
	Status       string `json:"status"`
	Connected    bool   `json:"connected"`
	ResponseTime int64  `json:"response_time_ms"`
	OpenConns    int    `json:"open_connections"`
	InUseConns   int    `json:"in_use_connections"`
	WaitCount    int64  `json:"wait_count"`
	Version      string `json:"version,omitempty"`
	Error        string `json:"error,omitempty"`
}

// GatewayHealth represents the HyperPay connection
type GatewayHealth struct {
	Status       string `json:"status"`
	Mode         string `json:"mode,omitempty"`
	CircuitState string `json:"circuit_state"`
	Error        string `json:"error,omitempty"`
}

// SystemHealth represents system resource health
type SystemHealth struct {
	Memory     *MemoryHealth `json:"memory"`
	Disk       *DiskHealth   `json:"disk"`
	GoRoutines int           `json:"goroutines"`
}

// MemoryHealth represents memory usage
type MemoryHealth struct {
	Alloc  string `json:"alloc"`
	Sys    string `json:"sys"`
	GCRuns uint32 `json:"gc_runs"`
}

// DiskHealth represents disk usage
type DiskHealth struct {
	Available    string  `json:"available"`
	Total        string  `json:"total"`
	UsagePercent float64 `json:"usage_percent"`
	Status       string  `json:"status"`
}

// NewHealthHandler creates a new health handler. gateway may be nil when
// HyperPay is not configured.
func NewHealthHandler(db *sql.DB, gateway Gateway, environment string) *HealthHandler {
	return &HealthHandler{
		db:          db,
		gateway:     gateway,
		environment: environment,
		startTime:   time.Now(),
	}
}

// CheckHealth reports database, gateway and system health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	health := &HealthStatus{
		Version:     "1.0.0",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Environment: h.environment,
		Database:    h.checkDatabaseHealth(ctx),
		Gateway:     h.checkGatewayHealth(ctx),
		System:      checkSystemHealth(),
	}
	health.Status = determineOverallStatus(health)

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	response.WriteJSON(w, statusCode, response.Response{
		Code:    statusCode,
		Success: health.Status != "unhealthy",
		Message: fmt.Sprintf("Service is %s", health.Status),
		Data:    health,
	})
}

func (h *HealthHandler) checkDatabaseHealth(ctx context.Context) *DatabaseHealth {
	dbHealth := &DatabaseHealth{Status: "unknown"}

	if h.db == nil {
		dbHealth.Status = "not_configured"
		dbHealth.Error = "Database not configured"
		return dbHealth
	}

	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		dbHealth.Status = "unhealthy"
		dbHealth.Error = err.Error()
		dbHealth.ResponseTime = time.Since(start).Milliseconds()
		return dbHealth
	}

	dbHealth.Connected = true
	dbHealth.ResponseTime = time.Since(start).Milliseconds()

	stats := h.db.Stats()
	dbHealth.OpenConns = stats.OpenConnections
	dbHealth.InUseConns = stats.InUse
	dbHealth.WaitCount = stats.WaitCount

	var version string
	if err := h.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err == nil {
		dbHealth.Version = version
	}

	if dbHealth.ResponseTime > 1000 || dbHealth.WaitCount > 100 {
		dbHealth.Status = "degraded"
	} else {
		dbHealth.Status = "healthy"
	}
	return dbHealth
}

func (h *HealthHandler) checkGatewayHealth(ctx context.Context) *GatewayHealth {
	if h.gateway == nil {
		return &GatewayHealth{Status: "not_configured", CircuitState: "disabled"}
	}

	gw := &GatewayHealth{
		Status:       "healthy",
		Mode:         h.gateway.Mode(),
		CircuitState: h.gateway.BreakerState(),
	}
	if err := h.gateway.Ready(ctx); err != nil {
		gw.Status = "unhealthy"
		gw.Error = err.Error()
		return gw
	}
	if gw.CircuitState == "half-open" {
		gw.Status = "degraded"
	}
	return gw
}

func checkSystemHealth() *SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &SystemHealth{
		Memory: &MemoryHealth{
			Alloc:  formatBytes(memStats.Alloc),
			Sys:    formatBytes(memStats.Sys),
			GCRuns: memStats.NumGC,
		},
		Disk:       getDiskUsage("/"),
		GoRoutines: runtime.NumGoroutine(),
	}
}

func determineOverallStatus(health *HealthStatus) string {
	if health.Database != nil && health.Database.Status == "unhealthy" {
		return "unhealthy"
	}
	if health.Gateway != nil && health.Gateway.Status == "unhealthy" {
		return "unhealthy"
	}

	if health.Database != nil && health.Database.Status == "degraded" {
		return "degraded"
	}
	if health.Gateway != nil && health.Gateway.Status != "healthy" {
		return "degraded"
	}
	if health.System != nil && health.System.Disk != nil && health.System.Disk.UsagePercent > 90 {
		return "degraded"
	}
	return "healthy"
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func getDiskUsage(path string) *DiskHealth {
	disk := &DiskHealth{Status: "unknown"}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		disk.Status = "error"
		return disk
	}

	available := stat.Bavail * uint64(stat.Bsize)
	total := stat.Blocks * uint64(stat.Bsize)
	if total == 0 {
		return disk
	}
	used := total - (stat.Bfree * uint64(stat.Bsize))

	disk.Available = formatBytes(available)
	disk.Total = formatBytes(total)
	disk.UsagePercent = (float64(used) / float64(total)) * 100

	switch {
	case disk.UsagePercent > 90:
		disk.Status = "critical"
	case disk.UsagePercent > 80:
		disk.Status = "warning"
	default:
		disk.Status = "healthy"
	}
	return disk
}
