package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
	"github.com/billzap/billzap-go/internal/infra/resilience"
)

// --- Mocks ---

type fakeRunner struct {
	mu   sync.Mutex
	runs []string
}

func (f *fakeRunner) RunDailyRoutine(_ context.Context, tenantID string, _ domain.RunTrigger) domain.RunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, tenantID)
	return domain.RunResult{RunID: "run-" + tenantID, TenantID: tenantID, State: domain.RunCompleted}
}

func (f *fakeRunner) ranTenants() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.runs...)
}

type fakeSweepSettings struct {
	configs map[string]*domain.TenantBillingConfig
	order   []string
}

func (f *fakeSweepSettings) GetBillingSettings(_ context.Context, tenantID string) (*domain.TenantBillingConfig, error) {
	cfg, ok := f.configs[tenantID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "billing_settings", ID: tenantID}
	}
	return cfg, nil
}

func (f *fakeSweepSettings) GetTemplateSet(_ context.Context, _ string) (domain.TemplateSet, error) {
	return domain.TemplateSet{}, nil
}

func (f *fakeSweepSettings) ListTenantIDs(_ context.Context) ([]string, error) {
	return f.order, nil
}

type memMarkers struct {
	mu      sync.Mutex
	markers map[string]string
}

func newMemMarkers() *memMarkers {
	return &memMarkers{markers: make(map[string]string)}
}

func (m *memMarkers) LastRun(_ context.Context, tenantID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markers[tenantID], nil
}

func (m *memMarkers) SetLastRun(_ context.Context, tenantID, marker string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[tenantID] = marker
	return nil
}

// --- Tests ---

var sweepTime = time.Date(2026, 9, 2, 8, 30, 5, 0, time.UTC)

func newTrigger(runner *fakeRunner, settings *fakeSweepSettings, markers *memMarkers) *DailyTrigger {
	return NewDailyTrigger(runner, settings, markers, resilience.NewBulkhead(2), zap.NewNop()).
		WithClock(func() time.Time { return sweepTime })
}

func TestSweep_RunsOnlyDueTenants(t *testing.T) {
	runner := &fakeRunner{}
	settings := &fakeSweepSettings{
		order: []string{"tenant-a", "tenant-b", "tenant-c"},
		configs: map[string]*domain.TenantBillingConfig{
			"tenant-a": {TenantID: "tenant-a", DailyTriggerTime: "08:30"},
			"tenant-b": {TenantID: "tenant-b", DailyTriggerTime: "09:00"},
			"tenant-c": {TenantID: "tenant-c", DailyTriggerTime: "08:30"},
		},
	}
	markers := newMemMarkers()

	newTrigger(runner, settings, markers).Sweep(context.Background())

	ran := runner.ranTenants()
	if len(ran) != 2 {
		t.Fatalf("expected 2 tenants to run, got %v", ran)
	}
	for _, tenantID := range []string{"tenant-a", "tenant-c"} {
		if markers.markers[tenantID] != "2026-09-02 08:30" {
			t.Errorf("expected marker set for %s, got %q", tenantID, markers.markers[tenantID])
		}
	}
	if _, ok := markers.markers["tenant-b"]; ok {
		t.Errorf("expected no marker for tenant-b")
	}
}

func TestSweep_SecondSweepSameMinuteIsNoOp(t *testing.T) {
	runner := &fakeRunner{}
	settings := &fakeSweepSettings{
		order: []string{"tenant-a"},
		configs: map[string]*domain.TenantBillingConfig{
			"tenant-a": {TenantID: "tenant-a", DailyTriggerTime: "08:30"},
		},
	}
	markers := newMemMarkers()
	trigger := newTrigger(runner, settings, markers)

	trigger.Sweep(context.Background())
	trigger.Sweep(context.Background())

	if got := len(runner.ranTenants()); got != 1 {
		t.Fatalf("expected exactly one run across two sweeps, got %d", got)
	}
}

func TestSweep_CancelledAcquireLeavesTenantUnmarked(t *testing.T) {
	runner := &fakeRunner{}
	settings := &fakeSweepSettings{
		order: []string{"tenant-a"},
		configs: map[string]*domain.TenantBillingConfig{
			"tenant-a": {TenantID: "tenant-a", DailyTriggerTime: "08:30"},
		},
	}
	markers := newMemMarkers()

	// Occupy the single run slot so Acquire must wait on the context.
	bulkhead := resilience.NewBulkhead(1)
	if err := bulkhead.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer bulkhead.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trigger := NewDailyTrigger(runner, settings, markers, bulkhead, zap.NewNop()).
		WithClock(func() time.Time { return sweepTime })
	trigger.Sweep(ctx)

	if got := len(runner.ranTenants()); got != 0 {
		t.Fatalf("expected no runs, got %d", got)
	}
	// The marker stays clear so the next sweep can retry the tenant.
	if marker, ok := markers.markers["tenant-a"]; ok {
		t.Fatalf("expected no marker after aborted acquire, got %q", marker)
	}
}

func TestSweep_MissingSettingsSkipsTenant(t *testing.T) {
	runner := &fakeRunner{}
	settings := &fakeSweepSettings{
		order: []string{"ghost", "tenant-a"},
		configs: map[string]*domain.TenantBillingConfig{
			"tenant-a": {TenantID: "tenant-a", DailyTriggerTime: "08:30"},
		},
	}

	newTrigger(runner, settings, newMemMarkers()).Sweep(context.Background())

	ran := runner.ranTenants()
	if len(ran) != 1 || ran[0] != "tenant-a" {
		t.Fatalf("expected only tenant-a to run, got %v", ran)
	}
}
