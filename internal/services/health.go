package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

// HealthChecker is implemented by every probeable component.
type HealthChecker interface {
	CheckHealth(ctx context.Context) types.HealthReport
}

// SystemHealth is the aggregate consumed by the monitoring service.
type SystemHealth struct {
	Status     string               `json:"status"`
	Timestamp  time.Time            `json:"timestamp"`
	Components []types.HealthReport `json:"components"`
}

type HealthService interface {
	CheckAll(ctx context.Context) SystemHealth
}

type healthService struct {
	log      *logger.Logger
	checkers []HealthChecker
}

func NewHealthService(baseLog *logger.Logger, checkers ...HealthChecker) HealthService {
	return &healthService{
		log:      baseLog.With("service", "HealthService"),
		checkers: checkers,
	}
}

// CheckAll probes every component concurrently. One failing probe never
// aborts the others; its failure lands in its own report. Overall status is
// the most severe component status: critical > warning > unknown > healthy.
func (s *healthService) CheckAll(ctx context.Context) SystemHealth {
	reports := make([]types.HealthReport, len(s.checkers))
	g, gctx := errgroup.WithContext(ctx)
	for i, checker := range s.checkers {
		g.Go(func() error {
			reports[i] = checker.CheckHealth(gctx)
			return nil
		})
	}
	_ = g.Wait()

	overall := types.HealthHealthy
	for _, r := range reports {
		if severityRank(r.Status) > severityRank(overall) {
			overall = r.Status
		}
	}
	return SystemHealth{
		Status:     overall,
		Timestamp:  time.Now().UTC(),
		Components: reports,
	}
}

func severityRank(status string) int {
	switch status {
	case types.HealthCritical:
		return 3
	case types.HealthWarning:
		return 2
	case types.HealthUnknown:
		return 1
	default:
		return 0
	}
}

// DatabaseHealthChecker probes connectivity on the shared gorm handle.
type DatabaseHealthChecker struct {
	db *gorm.DB
}

func NewDatabaseHealthChecker(db *gorm.DB) *DatabaseHealthChecker {
	return &DatabaseHealthChecker{db: db}
}

func (c *DatabaseHealthChecker) CheckHealth(ctx context.Context) types.HealthReport {
	report := types.HealthReport{
		Service:   "database",
		Timestamp: time.Now().UTC(),
		Details:   map[string]interface{}{},
	}
	start := time.Now()
	sqlDB, err := c.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	report.ResponseTimeMS = float64(time.Since(start).Milliseconds())
	if err != nil {
		report.Status = types.HealthCritical
		report.Message = "database unreachable"
		report.Details["error"] = err.Error()
		return report
	}
	report.Status = types.HealthHealthy
	report.Message = "database reachable"
	return report
}
