package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperfeed/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	CheckStorage    = "storage"
	CheckEmbedding  = "embedding"
	CheckCompletion = "completion"
	CheckIndex      = "index"
)

// DefaultTimeout bounds each individual check.
const DefaultTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	storage StoragePinger
	checks  map[string]Checker
	timeout time.Duration
}

// Option adds an optional check.
type Option func(*Service)

// WithEmbedding checks the embedding provider.
func WithEmbedding(c Checker) Option { return with(CheckEmbedding, c) }

// WithCompletion checks the completion provider.
func WithCompletion(c Checker) Option { return with(CheckCompletion, c) }

// WithIndex checks the vector index.
func WithIndex(c Checker) Option { return with(CheckIndex, c) }

// WithTimeout overrides the per-check timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func with(name string, c Checker) Option {
	return func(s *Service) {
		if c != nil {
			s.checks[name] = c
		}
	}
}

// New creates a Service. Nil optional checkers are skipped.
func New(storage StoragePinger, opts ...Option) *Service {
	s := &Service{storage: storage, checks: make(map[string]Checker), timeout: DefaultTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks)+1)
	checks[CheckStorage] = s.run(ctx, CheckStorage, s.storage.Ping)
	for name, c := range s.checks {
		checks[name] = s.run(ctx, name, c.HealthCheck)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, name string, fn func(context.Context) error) CheckResult {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(cctx); err != nil {
		logger.FromContext(ctx).Warn("health check failed", zap.String("check", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
