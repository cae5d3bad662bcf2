package threat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentra/internal/audit"
	id "sentra/pkg/domain"
	dErrors "sentra/pkg/domain-errors"
)

type recorderStub struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recorderStub) Record(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

type blockerStub struct {
	mu      sync.Mutex
	blocked []string
}

func (b *blockerStub) Block(ip string, _ time.Duration, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked = append(b.blocked, ip)
}

type alerterStub struct {
	mu     sync.Mutex
	alerts []Alert
}

func (a *alerterStub) Publish(alert Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
}

func failureEntry(actorID, ip string, at time.Time) audit.Entry {
	return audit.Entry{
		Action:    audit.ActionAuthFailed,
		Outcome:   audit.OutcomeFailure,
		ActorID:   actorID,
		SourceIP:  ip,
		Timestamp: at,
		RiskLevel: audit.RiskMedium,
	}
}

func TestBruteForceAfterFiveConsecutiveFailures(t *testing.T) {
	rec := &recorderStub{}
	blocker := &blockerStub{}
	d := NewDetector(rec, WithBlocker(blocker, time.Hour))
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 4; i++ {
		d.Observe(ctx, failureEntry("", "203.0.113.9", base.Add(time.Duration(i)*time.Second)))
	}
	require.Empty(t, d.Threats(0))

	d.Observe(ctx, failureEntry("", "203.0.113.9", base.Add(5*time.Second)))

	threats := d.Threats(0)
	require.Len(t, threats, 1)
	require.Equal(t, TypeBruteForce, threats[0].Type)
	require.Equal(t, SeverityHigh, threats[0].Severity)
	require.Equal(t, []string{"203.0.113.9"}, blocker.blocked)
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	rec := &recorderStub{}
	d := NewDetector(rec)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 4; i++ {
		d.Observe(ctx, failureEntry("actor-1", "203.0.113.9", base.Add(time.Duration(i)*time.Second)))
	}
	d.Observe(ctx, audit.Entry{
		Action:    audit.ActionRequestAllowed,
		Outcome:   audit.OutcomeSuccess,
		ActorID:   "actor-1",
		SourceIP:  "203.0.113.9",
		Timestamp: base.Add(4 * time.Second),
	})
	d.Observe(ctx, failureEntry("actor-1", "203.0.113.9", base.Add(5*time.Second)))

	require.Empty(t, d.Threats(0))
}

func TestFailuresOutsideWindowDoNotAccumulate(t *testing.T) {
	rec := &recorderStub{}
	d := NewDetector(rec, WithThreshold(3, time.Minute))
	ctx := context.Background()
	base := time.Now()

	d.Observe(ctx, failureEntry("actor-1", "203.0.113.9", base))
	d.Observe(ctx, failureEntry("actor-1", "203.0.113.9", base.Add(30*time.Second)))
	// Outside the rolling window; counting starts over.
	d.Observe(ctx, failureEntry("actor-1", "203.0.113.9", base.Add(2*time.Minute)))

	require.Empty(t, d.Threats(0))
}

func TestCriticalPHIAccessRaisesSuspiciousAccess(t *testing.T) {
	rec := &recorderStub{}
	alerter := &alerterStub{}
	blocker := &blockerStub{}
	d := NewDetector(rec, WithAlerter(alerter), WithBlocker(blocker, time.Hour))

	d.Observe(context.Background(), audit.Entry{
		Action:    audit.ActionPHIDenied,
		Outcome:   audit.OutcomeFailure,
		ActorID:   "actor-9",
		SourceIP:  "198.51.100.4",
		Timestamp: time.Now(),
		RiskLevel: audit.RiskCritical,
		Flags:     audit.ComplianceFlags{PHITouched: true},
	})

	threats := d.Threats(0)
	require.Len(t, threats, 1)
	require.Equal(t, TypeSuspiciousAccess, threats[0].Type)
	require.Equal(t, SeverityCritical, threats[0].Severity)

	// Critical severity alerts out of band and marks the IP.
	require.Len(t, alerter.alerts, 1)
	require.Equal(t, []string{"198.51.100.4"}, blocker.blocked)
}

func TestSelfEmittedEntriesAreIgnored(t *testing.T) {
	rec := &recorderStub{}
	d := NewDetector(rec, WithThreshold(1, time.Minute))

	d.Observe(context.Background(), audit.Entry{
		Action:    audit.ActionThreatDetected,
		Outcome:   audit.OutcomeFailure,
		SourceIP:  "203.0.113.9",
		Timestamp: time.Now(),
	})
	require.Empty(t, d.Threats(0))
}

func TestMitigateFlipsFlag(t *testing.T) {
	rec := &recorderStub{}
	d := NewDetector(rec, WithThreshold(1, time.Minute))
	ctx := context.Background()

	d.Observe(ctx, failureEntry("actor-1", "203.0.113.9", time.Now()))
	threats := d.Threats(0)
	require.Len(t, threats, 1)
	require.False(t, threats[0].Mitigated)

	require.NoError(t, d.Mitigate(ctx, threats[0].ID))
	require.True(t, d.Threats(0)[0].Mitigated)
}

func TestMitigateUnknownThreat(t *testing.T) {
	rec := &recorderStub{}
	d := NewDetector(rec)

	err := d.Mitigate(context.Background(), id.NewThreatID())
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRunConsumesStream(t *testing.T) {
	rec := &recorderStub{}
	d := NewDetector(rec, WithThreshold(2, time.Minute))

	stream := make(chan audit.Entry, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx, stream)
		close(done)
	}()

	base := time.Now()
	stream <- failureEntry("actor-1", "203.0.113.9", base)
	stream <- failureEntry("actor-1", "203.0.113.9", base.Add(time.Second))

	require.Eventually(t, func() bool { return len(d.Threats(0)) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
