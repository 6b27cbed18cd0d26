package app

import (
	"context"
	"fmt"
	"time"

	"vinec/internal/shared/util"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Mode       string            `json:"mode"`
	Components map[string]string `json:"components"`
	Stats      Stats             `json:"stats"`
	HeapMB     uint64            `json:"heap_alloc_mb"`
}

type HealthService struct {
	app *App
	hub *Hub
}

func NewHealthService(app *App, hub *Hub) *HealthService {
	return &HealthService{app: app, hub: hub}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	stats := s.app.Stats()
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Mode:       string(s.app.Compiler.Mode()),
		Components: make(map[string]string),
		Stats:      stats,
		HeapMB:     util.GetHeapAllocMB(),
	}

	status.Components["modules"] = fmt.Sprintf("ok (%d tracked, %d in graph)", stats.Tracked, s.app.Modules.Len())
	if cycles := s.app.Modules.DetectCycles(); len(cycles) > 0 {
		status.Components["modules"] = fmt.Sprintf("%d import cycle(s)", len(cycles))
	}
	if s.app.activeWatcher.Load() != nil {
		status.Components["watcher"] = "ok"
	} else {
		status.Status = "degraded"
		status.Components["watcher"] = "not running"
	}
	if s.hub != nil {
		status.Components["hmr"] = fmt.Sprintf("ok (%d clients)", s.hub.Len())
	}
	if stats.Compiles > 0 && stats.Failures == stats.Compiles {
		status.Status = "degraded"
		status.Components["compiler"] = "every compile failed"
	} else {
		status.Components["compiler"] = "ok"
	}
	return status
}
