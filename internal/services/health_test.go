package services

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

type stubChecker struct {
	service string
	status  string
	delay   time.Duration
}

func (c stubChecker) CheckHealth(ctx context.Context) types.HealthReport {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
		}
	}
	return types.HealthReport{Service: c.service, Status: c.status, Timestamp: time.Now().UTC()}
}

func TestCheckAllSeverityAggregation(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"all healthy", []string{types.HealthHealthy, types.HealthHealthy}, types.HealthHealthy},
		{"warning dominates healthy", []string{types.HealthHealthy, types.HealthWarning}, types.HealthWarning},
		{"critical dominates warning", []string{types.HealthWarning, types.HealthCritical, types.HealthHealthy}, types.HealthCritical},
		{"unknown dominates healthy", []string{types.HealthUnknown, types.HealthHealthy}, types.HealthUnknown},
		{"no checkers", nil, types.HealthHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkers := make([]HealthChecker, 0, len(tt.statuses))
			for i, status := range tt.statuses {
				checkers = append(checkers, stubChecker{service: string(rune('a' + i)), status: status})
			}
			svc := NewHealthService(logger.NewNop(), checkers...)

			health := svc.CheckAll(context.Background())
			if health.Status != tt.want {
				t.Errorf("Status = %q, want %q", health.Status, tt.want)
			}
			if len(health.Components) != len(tt.statuses) {
				t.Errorf("len(Components) = %d, want %d", len(health.Components), len(tt.statuses))
			}
		})
	}
}

func TestCheckAllProbesConcurrently(t *testing.T) {
	const probes = 4
	checkers := make([]HealthChecker, 0, probes)
	for i := 0; i < probes; i++ {
		checkers = append(checkers, stubChecker{service: "slow", status: types.HealthHealthy, delay: 50 * time.Millisecond})
	}
	svc := NewHealthService(logger.NewNop(), checkers...)

	start := time.Now()
	health := svc.CheckAll(context.Background())
	elapsed := time.Since(start)

	if len(health.Components) != probes {
		t.Fatalf("len(Components) = %d, want %d", len(health.Components), probes)
	}
	// Sequential probing would take probes*50ms.
	if elapsed > 150*time.Millisecond {
		t.Errorf("CheckAll took %v, probes do not appear concurrent", elapsed)
	}
}

func TestCheckAllComponentOrderStable(t *testing.T) {
	svc := NewHealthService(logger.NewNop(),
		stubChecker{service: "database", status: types.HealthHealthy},
		stubChecker{service: "analytics_processing", status: types.HealthWarning},
		stubChecker{service: "umami", status: types.HealthHealthy},
	)

	health := svc.CheckAll(context.Background())
	want := []string{"database", "analytics_processing", "umami"}
	for i, name := range want {
		if health.Components[i].Service != name {
			t.Errorf("Components[%d] = %q, want %q", i, health.Components[i].Service, name)
		}
	}
}
