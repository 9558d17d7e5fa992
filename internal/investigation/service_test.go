package investigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"symptom-coach/internal/metrics"
)

type fakeReporter struct {
	mu     sync.Mutex
	err    error
	states []*State
	kinds  []Kind
}

func (f *fakeReporter) SendReferralReport(_ context.Context, s *State, d Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, s)
	f.kinds = append(f.kinds, d.Kind())
	return f.err
}

func newTestService(t *testing.T, repo Repository, report ReportService, opts ...ServiceOption) (Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	e := newTestEngine(t, repo, WithLogger(log))
	return NewService(e, repo, report, log, opts...), logs
}

func TestService_EscalationSendsReport(t *testing.T) {
	repo := NewMemoryRepository()
	rep := &fakeReporter{}
	svc, _ := newTestService(t, repo, rep)
	ctx := context.Background()

	_, err := svc.HandleMessage(ctx, "u1", shoulderOpener)
	require.NoError(t, err)

	escalations := testutil.ToFloat64(metrics.Decisions.WithLabelValues("escalate", "medical_referral"))
	reply, err := svc.HandleMessage(ctx, "u1", "tenho uma dor que acorda à noite")
	require.NoError(t, err)
	assert.Equal(t, KindEscalate, reply.Kind)
	assert.Contains(t, reply.Text, "seek professional evaluation")
	assert.Equal(t, escalations+1, testutil.ToFloat64(metrics.Decisions.WithLabelValues("escalate", "medical_referral")))

	require.Len(t, rep.states, 1)
	assert.Equal(t, reply.SessionID, rep.states[0].ID)
	assert.Equal(t, StatusEscalated, rep.states[0].Status)
	assert.Equal(t, shoulderOpener, rep.states[0].OpeningText)
}

func TestService_MedicalReferralDiagnosisSendsReport(t *testing.T) {
	rep := &fakeReporter{}
	svc, _ := newTestService(t, NewMemoryRepository(), rep)
	ctx := context.Background()

	for _, msg := range []string{"dor no joelho quando agacho", "sinto o joelho travar às vezes"} {
		_, err := svc.HandleMessage(ctx, "u1", msg)
		require.NoError(t, err)
	}
	assert.Empty(t, rep.states)

	reply, err := svc.HandleMessage(ctx, "u1", "e fica inchado depois do treino")
	require.NoError(t, err)
	assert.Equal(t, KindDiagnose, reply.Kind)
	assert.Equal(t, []Kind{KindDiagnose}, rep.kinds)
}

func TestService_AdjustmentDoesNotSendReport(t *testing.T) {
	rep := &fakeReporter{}
	svc, _ := newTestService(t, NewMemoryRepository(), rep)
	ctx := context.Background()

	for _, msg := range []string{shoulderOpener, "Na frente do ombro", "Sim, piora na elevação lateral e dá um estalo"} {
		_, err := svc.HandleMessage(ctx, "u1", msg)
		require.NoError(t, err)
	}
	assert.Empty(t, rep.states)
}

func TestService_ReportFailureDoesNotHideReply(t *testing.T) {
	rep := &fakeReporter{err: errors.New("telegram down")}
	svc, logs := newTestService(t, NewMemoryRepository(), rep)

	reply, err := svc.HandleMessage(context.Background(), "u1", "tenho uma dor que acorda à noite")
	require.NoError(t, err)
	assert.Equal(t, KindEscalate, reply.Kind)

	failed := logs.FilterMessage("send referral report").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
}

func TestService_StoreFailure(t *testing.T) {
	repo := failingRepo{Repository: NewMemoryRepository(), op: "list_open"}
	svc, logs := newTestService(t, repo, nil)

	before := testutil.ToFloat64(metrics.StoreErrors.WithLabelValues("list_open"))
	_, err := svc.HandleMessage(context.Background(), "u1", shoulderOpener)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StoreErrors.WithLabelValues("list_open")))
	assert.Equal(t, 1, logs.FilterMessage("store failure").Len())
}

func TestService_InvalidInput(t *testing.T) {
	svc, _ := newTestService(t, NewMemoryRepository(), nil)

	_, err := svc.HandleMessage(context.Background(), "  ", "dor no ombro")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_NotInvestigable(t *testing.T) {
	svc, _ := newTestService(t, NewMemoryRepository(), nil)

	before := testutil.ToFloat64(metrics.NotInvestigable)
	_, err := svc.HandleMessage(context.Background(), "u1", "bom dia")
	assert.ErrorIs(t, err, ErrNotInvestigable)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.NotInvestigable))
}

func TestService_SerialisesTurnsOfOneUser(t *testing.T) {
	repo := NewMemoryRepository()
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()

	first, err := svc.HandleMessage(ctx, "u1", shoulderOpener)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.HandleMessage(ctx, "u1", "Na frente do ombro")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	s, err := repo.GetByID(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.AnswersReceived)
	assert.Equal(t, StatusCompleted, s.Status)
}

func TestService_LockTimeout(t *testing.T) {
	svc, _ := newTestService(t, NewMemoryRepository(), nil, WithLockTimeout(10*time.Millisecond))

	unlock, err := svc.(*service).locks.Lock(context.Background(), "u1")
	require.NoError(t, err)
	defer unlock()

	_, err = svc.HandleMessage(context.Background(), "u1", shoulderOpener)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_GetSession(t *testing.T) {
	repo := NewMemoryRepository()
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()

	reply, err := svc.HandleMessage(ctx, "u1", shoulderOpener)
	require.NoError(t, err)

	s, err := svc.GetSession(ctx, reply.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "shoulder", s.TopicKey)

	_, err = svc.GetSession(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
