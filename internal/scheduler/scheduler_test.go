package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	approvaldomain "github.com/smallbiznis/creatorpay/internal/approval/domain"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	"github.com/smallbiznis/creatorpay/internal/clock"
	obsmetrics "github.com/smallbiznis/creatorpay/internal/observability/metrics"
	sweeperdomain "github.com/smallbiznis/creatorpay/internal/sweeper/domain"
	"github.com/smallbiznis/creatorpay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := useTestRegistry(t)

	s := &Scheduler{log: zap.NewNop(), genID: testutil.NewNode(t), clock: clock.NewFakeClock(time.Time{})}
	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "creatorpay",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "creatorpay_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "creatorpay",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "creatorpay_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

type stubSweeper struct {
	results []sweeperdomain.Result
	limits  []int
}

func (s *stubSweeper) ProcessEvidenceDeadlines(ctx context.Context, limit int) (*sweeperdomain.Result, error) {
	s.limits = append(s.limits, limit)
	if len(s.results) == 0 {
		return &sweeperdomain.Result{RunID: "empty", Errors: []string{}}, nil
	}
	res := s.results[0]
	s.results = s.results[1:]
	return &res, nil
}

type stubApprovals struct {
	approvaldomain.Service
	expired []int
	calls   int
}

func (s *stubApprovals) ExpireStale(ctx context.Context, limit int) (int, error) {
	s.calls++
	if len(s.expired) == 0 {
		return 0, nil
	}
	n := s.expired[0]
	s.expired = s.expired[1:]
	return n, nil
}

type cronAuthz struct {
	allow bool
}

func (a cronAuthz) Authorize(ctx context.Context, subject, object, action string) error {
	if !a.allow || subject != authorization.SubjectCron {
		return authorization.ErrForbidden
	}
	return nil
}

func (a cronAuthz) Can(ctx context.Context, subject, object, action string) (bool, error) {
	return a.allow && subject == authorization.SubjectCron, nil
}

func newStubScheduler(t *testing.T, cfg Config, sweeper *stubSweeper, approvals *stubApprovals, authz cronAuthz) (*Scheduler, *testutil.AuditRecorder) {
	t.Helper()
	useTestRegistry(t)
	audit := &testutil.AuditRecorder{}
	s, err := New(Params{
		Log:       zap.NewNop(),
		GenID:     testutil.NewNode(t),
		Clock:     clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		Sweeper:   sweeper,
		Approvals: approvals,
		AuditSvc:  audit,
		AuthzSvc:  authz,
		Config:    cfg,
	})
	require.NoError(t, err)
	return s, audit
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnceDrainsFullBatches(t *testing.T) {
	sweeper := &stubSweeper{results: []sweeperdomain.Result{
		{RunID: "a", Processed: 2, Rejected: 2, Errors: []string{}},
		{RunID: "b", Processed: 1, Skipped: 1, Errors: []string{}},
	}}
	approvals := &stubApprovals{expired: []int{2, 0}}
	s, audit := newStubScheduler(t, Config{BatchSize: 2}, sweeper, approvals, cronAuthz{allow: true})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []int{2, 2}, sweeper.limits)
	assert.Equal(t, 2, approvals.calls)
	assert.True(t, audit.Has("sweeper.run_completed"))
}

func TestRunOnceHonoursEnabledJobs(t *testing.T) {
	sweeper := &stubSweeper{}
	approvals := &stubApprovals{}
	s, _ := newStubScheduler(t, Config{EnabledJobs: []string{" Approval_Expiry "}}, sweeper, approvals, cronAuthz{allow: true})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, sweeper.limits)
	assert.Equal(t, 1, approvals.calls)
}

func TestRunOnceStopsWhenCronIsForbidden(t *testing.T) {
	sweeper := &stubSweeper{}
	approvals := &stubApprovals{}
	s, _ := newStubScheduler(t, Config{}, sweeper, approvals, cronAuthz{allow: false})

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, authorization.ErrForbidden))
	assert.Empty(t, sweeper.limits)
	assert.Zero(t, approvals.calls)
}

func TestRunOnceSurfacesItemErrors(t *testing.T) {
	sweeper := &stubSweeper{results: []sweeperdomain.Result{
		{RunID: "a", Processed: 100, Rejected: 99, Errors: []string{"42: database is locked"}},
		{RunID: "b", Processed: 100, Errors: []string{}},
	}}
	s, _ := newStubScheduler(t, Config{}, sweeper, &stubApprovals{}, cronAuthz{allow: true})

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evidence_deadlines")
	assert.Contains(t, err.Error(), "database is locked")
	assert.Len(t, sweeper.limits, 1)
}

// useTestRegistry points the scheduler metrics singleton at a fresh registry
// for the duration of the test.
func useTestRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "creatorpay",
		Environment: "test",
	})
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	})
	return registry
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
