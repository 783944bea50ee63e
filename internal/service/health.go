package service

import (
	"context"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const healthProbeTimeout = 3 * time.Second

type healthCheck struct {
	name   string
	pinger port.Pinger
}

// HealthService probes dependencies concurrently for /healthz.
type HealthService struct {
	checks []healthCheck
	now    func() time.Time
	logger *zap.Logger
}

// NewHealthService creates an empty health service.
func NewHealthService(logger *zap.Logger) *HealthService {
	return &HealthService{now: time.Now, logger: logger}
}

// Register adds a dependency. A nil pinger is reported as skipped.
func (h *HealthService) Register(name string, p port.Pinger) *HealthService {
	h.checks = append(h.checks, healthCheck{name: name, pinger: p})
	return h
}

// Check pings every dependency. Failures degrade the overall status but
// never fail the request.
func (h *HealthService) Check(ctx context.Context) *domain.HealthStatus {
	services := make([]domain.ServiceHealth, len(h.checks)+1)
	checked := h.now().UTC().Format(time.RFC3339)
	services[0] = domain.ServiceHealth{Name: "voicerly-bff", Status: domain.StatusHealthy, LastChecked: checked}

	g, gCtx := errgroup.WithContext(ctx)
	for i, c := range h.checks {
		g.Go(func() error {
			res := domain.ServiceHealth{Name: c.name, LastChecked: checked}
			if c.pinger == nil {
				res.Status = domain.StatusSkipped
				services[i+1] = res
				return nil
			}

			pctx, cancel := context.WithTimeout(gCtx, healthProbeTimeout)
			defer cancel()
			start := time.Now()
			err := c.pinger.Ping(pctx)
			res.LatencyMs = time.Since(start).Milliseconds()
			if err != nil {
				h.logger.Warn("health: dependency check failed", zap.String("service", c.name), zap.Error(err))
				res.Status = domain.StatusUnhealthy
				res.Error = err.Error()
			} else {
				res.Status = domain.StatusHealthy
			}
			services[i+1] = res
			// never cancel sibling probes
			return nil
		})
	}
	_ = g.Wait()

	overall := domain.StatusHealthy
	for _, s := range services {
		if s.Status == domain.StatusUnhealthy {
			overall = domain.StatusDegraded
			break
		}
	}
	return &domain.HealthStatus{Status: overall, Services: services}
}
