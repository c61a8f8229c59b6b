package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceReadinessEnrichesMetadata(t *testing.T) {
	start := testNow.Add(-5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"postgres": {Status: domain.HealthStatusOK},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            fixedClock,
		Build:            BuildInfo{Version: "1.2.3", Environment: "prod", StartedAt: start},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.Readiness(context.Background())
	if err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %s", report.Status)
	}
	if report.Version != "1.2.3" || report.Environment != "prod" {
		t.Fatalf("unexpected build metadata %+v", report)
	}
	if report.Uptime != 5*time.Minute {
		t.Fatalf("expected uptime 5m, got %s", report.Uptime)
	}
	if !report.GeneratedAt.Equal(testNow) {
		t.Fatalf("expected generatedAt %s, got %s", testNow, report.GeneratedAt)
	}
}

func TestSystemServiceReadinessErrors(t *testing.T) {
	expected := errors.New("collect failed")
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: &stubHealthRepository{err: expected}})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}
	if _, err := svc.Readiness(context.Background()); !errors.Is(err, expected) {
		t.Fatalf("expected error %v, got %v", expected, err)
	}
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatalf("expected error when repository missing")
	}
}

func TestSystemServiceDerivesStatus(t *testing.T) {
	cases := []struct {
		checks map[string]domain.SystemHealthCheck
		want   string
	}{
		{nil, domain.HealthStatusOK},
		{map[string]domain.SystemHealthCheck{"redis": {Status: domain.HealthStatusDegraded}, "postgres": {Status: domain.HealthStatusOK}}, domain.HealthStatusDegraded},
		{map[string]domain.SystemHealthCheck{"redis": {Status: domain.HealthStatusDegraded}, "postgres": {Status: domain.HealthStatusError}}, domain.HealthStatusError},
	}
	for _, tc := range cases {
		svc, err := NewSystemService(SystemServiceDeps{
			HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{Checks: tc.checks}},
			Clock:            fixedClock,
		})
		if err != nil {
			t.Fatalf("NewSystemService: %v", err)
		}
		report, err := svc.Readiness(context.Background())
		if err != nil {
			t.Fatalf("Readiness: %v", err)
		}
		if report.Status != tc.want {
			t.Fatalf("checks %v: expected %s, got %s", tc.checks, tc.want, report.Status)
		}
	}
}
