package health

import (
	"context"
	"time"
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

// Component names as they appear in Report.Checks.
const (
	ComponentStorage   = "storage"
	ComponentEmbedding = "embedding"
	ComponentLLM       = "llm"
	ComponentChatDB    = "chat_db"
	ComponentPDFTools  = "pdf_tools"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Components lists what to check. Nil entries are skipped.
type Components struct {
	Storage   Pinger
	Embedding Checker
	LLM       Checker
	ChatDB    Pinger
	PDFTools  Checker
}

// Service coordinates health checks.
type Service struct {
	checks  map[string]func(context.Context) error
	timeout time.Duration
}

// New creates a Service.
func New(c Components) *Service {
	checks := make(map[string]func(context.Context) error)
	if c.Storage != nil {
		checks[ComponentStorage] = c.Storage.Ping
	}
	if c.Embedding != nil {
		checks[ComponentEmbedding] = c.Embedding.HealthCheck
	}
	if c.LLM != nil {
		checks[ComponentLLM] = c.LLM.HealthCheck
	}
	if c.ChatDB != nil {
		checks[ComponentChatDB] = c.ChatDB.Ping
	}
	if c.PDFTools != nil {
		checks[ComponentPDFTools] = c.PDFTools.HealthCheck
	}
	return &Service{checks: checks, timeout: DefaultCheckTimeout}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	status := Healthy

	for name, fn := range s.checks {
		if err := s.run(ctx, fn); err != nil {
			checks[name] = CheckError
			status = Degraded
			continue
		}
		checks[name] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}
