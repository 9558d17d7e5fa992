package investigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"symptom-coach/internal/catalog"
	"symptom-coach/internal/metrics"
)

var ErrInvalidInput = errors.New("user_id is required")

// Decider runs a single conversation turn. *Engine implements it.
type Decider interface {
	HandleMessage(ctx context.Context, userID, raw string) (Decision, error)
}

// ReportService delivers referral reports for sessions that ended in a
// medical referral.
type ReportService interface {
	SendReferralReport(ctx context.Context, s *State, d Decision) error
}

type Service interface {
	HandleMessage(ctx context.Context, userID, text string) (Reply, error)
	GetSession(ctx context.Context, id uuid.UUID) (*State, error)
}

type ServiceOption func(*service)

// WithLockTimeout bounds how long a turn waits for the previous turn of the
// same user. Zero means wait as long as the request context allows.
func WithLockTimeout(d time.Duration) ServiceOption {
	return func(s *service) { s.lockTimeout = d }
}

type service struct {
	engine      Decider
	repo        Repository
	reportSvc   ReportService
	log         *zap.Logger
	locks       *keyedLock
	lockTimeout time.Duration
}

func NewService(engine Decider, repo Repository, report ReportService, log *zap.Logger, opts ...ServiceOption) Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &service{
		engine:    engine,
		repo:      repo,
		reportSvc: report,
		log:       log.Named("investigation"),
		locks:     newKeyedLock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleMessage runs one turn. Turns of the same user never overlap, so two
// messages sent back to back cannot both answer the same question.
func (s *service) HandleMessage(ctx context.Context, userID, text string) (Reply, error) {
	start := time.Now()
	defer func() { metrics.TurnDuration.Observe(time.Since(start).Seconds()) }()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Reply{}, ErrInvalidInput
	}

	// 1. Serialise per user
	lockCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}
	unlock, err := s.locks.Lock(lockCtx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("wait for previous turn of %s: %w", userID, err)
	}
	defer unlock()

	// 2. Decide
	d, err := s.engine.HandleMessage(ctx, userID, text)
	if err != nil {
		var storeErr *StoreError
		switch {
		case errors.Is(err, ErrNotInvestigable):
			metrics.NotInvestigable.Inc()
		case errors.As(err, &storeErr):
			metrics.StoreErrors.WithLabelValues(storeErr.Op).Inc()
			s.log.Error("store failure", zap.String("user_id", userID), zap.String("op", storeErr.Op), zap.Error(err))
		default:
			s.log.Error("turn failed", zap.String("user_id", userID), zap.Error(err))
		}
		return Reply{}, err
	}
	s.record(d)

	// 3. Referral report; the user gets the reply whatever happens here.
	if needsReferral(d) {
		s.sendReport(ctx, d)
	}

	return Compose(d), nil
}

func (s *service) GetSession(ctx context.Context, id uuid.UUID) (*State, error) {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		metrics.StoreErrors.WithLabelValues("get_by_id").Inc()
		return nil, &StoreError{Op: "get_by_id", Err: err}
	}
	return st, nil
}

func (s *service) record(d Decision) {
	var tier string
	switch v := d.(type) {
	case AskQuestion:
		if v.First {
			metrics.SessionsStarted.WithLabelValues(v.TopicKey).Inc()
		}
	case Escalate:
		tier = string(catalog.TierMedicalReferral)
	case Diagnose:
		tier = string(v.Tier)
	}
	metrics.Decisions.WithLabelValues(string(d.Kind()), tier).Inc()
}

func needsReferral(d Decision) bool {
	switch v := d.(type) {
	case Escalate:
		return true
	case Diagnose:
		return v.Tier == catalog.TierMedicalReferral
	}
	return false
}

func (s *service) sendReport(ctx context.Context, d Decision) {
	if s.reportSvc == nil {
		return
	}
	st, err := s.repo.GetByID(ctx, d.Session())
	if err != nil {
		s.log.Error("load session for report", zap.String("session_id", d.Session().String()), zap.Error(err))
		metrics.ReportsSent.WithLabelValues("failed").Inc()
		return
	}
	if err := s.reportSvc.SendReferralReport(ctx, st, d); err != nil {
		s.log.Error("send referral report", zap.String("session_id", st.ID.String()), zap.Error(err))
		metrics.ReportsSent.WithLabelValues("failed").Inc()
		return
	}
	metrics.ReportsSent.WithLabelValues("sent").Inc()
	s.log.Info("referral report sent", zap.String("session_id", st.ID.String()))
}
