package investigation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"symptom-coach/internal/catalog"
	"symptom-coach/internal/symptom"
)

// ErrNotInvestigable is returned for a message that neither opens a new
// investigation nor belongs to an open one. Callers reply with nothing.
var ErrNotInvestigable = errors.New("message is not part of an investigation")

type EngineOption func(*Engine)

func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithEarlyDiagnosis lets a rule whose every clause matches end a session
// before the topic's required answers are in.
func WithEarlyDiagnosis(enabled bool) EngineOption {
	return func(e *Engine) { e.early = enabled }
}

// Engine decides the next step of a conversation. It keeps no state between
// calls; everything lives in the Repository.
type Engine struct {
	repo    Repository
	topics  *catalog.Catalog
	regions *catalog.Catalog
	log     *zap.Logger
	early   bool
}

func NewEngine(repo Repository, topics, regions *catalog.Catalog, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:    repo,
		topics:  topics,
		regions: regions,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("engine")
	return e
}

// HandleMessage runs one turn for userID. Store failures come back as
// *StoreError. A failed turn on an existing session writes nothing; a new
// session whose first save fails is left with no question asked and is
// resumed by the next turn.
func (e *Engine) HandleMessage(ctx context.Context, userID, raw string) (Decision, error) {
	pain := symptom.LooksLikePainPost(raw)
	investigable := pain || symptom.IsInvestigableQuestion(raw)

	open, err := e.repo.ListOpen(ctx, userID)
	if err != nil {
		return nil, &StoreError{Op: "list_open", Err: err}
	}
	candidate := e.candidate(raw, pain, open)

	if !candidate.IsFallback() {
		if s := findOpen(open, candidate.Key); s != nil {
			return e.continueSession(ctx, s, candidate, raw, nil)
		}
		// While a question is pending, only an explicit question opens a
		// second topic; anything else is the answer.
		if investigable && (!awaitingAnswer(open) || symptom.IsExplicitQuestion(raw)) {
			return e.startSession(ctx, userID, candidate, raw)
		}
	}

	if len(open) > 0 {
		s := open[0]
		topic, ok := e.lookup(s.TopicKey)
		if !ok {
			return nil, fmt.Errorf("session %s: topic %q is not in any catalog", s.ID, s.TopicKey)
		}
		// The message may describe something the session's topic has no
		// red flags for, so the candidate's flags are checked as well.
		return e.continueSession(ctx, s, topic, raw, candidate)
	}

	if investigable {
		return e.startSession(ctx, userID, candidate, raw)
	}
	return nil, ErrNotInvestigable
}

// candidate picks the topic a message is about. Pain reports, and answers
// naming a region under investigation, go to the region catalog; everything
// else is routed by keyword.
func (e *Engine) candidate(raw string, pain bool, open []*State) *catalog.Topic {
	if t, ok := e.regions.Lookup(string(symptom.Parse(raw).Region)); ok {
		if pain || findOpen(open, t.Key) != nil {
			return t
		}
	}
	t := e.topics.Resolve(raw)
	if t.IsFallback() && pain {
		return e.regions.Fallback()
	}
	return t
}

func (e *Engine) lookup(key string) (*catalog.Topic, bool) {
	if t, ok := e.topics.Lookup(key); ok {
		return t, true
	}
	return e.regions.Lookup(key)
}

func findOpen(open []*State, topicKey string) *State {
	for _, s := range open {
		if s.TopicKey == topicKey {
			return s
		}
	}
	return nil
}

func awaitingAnswer(open []*State) bool {
	for _, s := range open {
		if s.AnswersReceived < s.QuestionsAsked {
			return true
		}
	}
	return false
}

func (e *Engine) startSession(ctx context.Context, userID string, topic *catalog.Topic, raw string) (Decision, error) {
	s, err := e.repo.Create(ctx, userID, topic.Key)
	if errors.Is(err, ErrAlreadyExists) {
		// Someone opened it between our read and the insert; resume theirs.
		s, err = e.repo.Get(ctx, userID, topic.Key)
		if err != nil {
			return nil, &StoreError{Op: "get", Err: err}
		}
		if s.Terminal() {
			return nil, &StoreError{Op: "get", Err: ErrVersionConflict}
		}
		return e.continueSession(ctx, s, topic, raw, nil)
	}
	if err != nil {
		return nil, &StoreError{Op: "create", Err: err}
	}

	e.log.Info("investigation started",
		zap.String("session_id", s.ID.String()),
		zap.String("user_id", userID),
		zap.String("topic", topic.Key),
	)

	s.OpeningText = raw
	if flags := topic.RedFlagsIn(raw); len(flags) > 0 {
		return e.escalate(ctx, s, topic, flags)
	}
	return e.askNext(ctx, s, topic)
}

func (e *Engine) continueSession(ctx context.Context, s *State, topic *catalog.Topic, raw string, also *catalog.Topic) (Decision, error) {
	// 1. Red flags win over everything, on every turn.
	if flags := redFlags(raw, topic, also); len(flags) > 0 {
		recordAnswer(s, raw)
		return e.escalate(ctx, s, topic, flags)
	}

	// 2. An earlier turn created the row but never got the first question out.
	if s.QuestionsAsked == 0 {
		if s.OpeningText == "" {
			s.OpeningText = raw
		}
		return e.askNext(ctx, s, topic)
	}

	// 3. Nothing usable: repeat the pending question, write nothing.
	if !symptom.HasContent(raw) {
		if q, ok := pendingQuestion(s, topic); ok {
			return AskQuestion{
				SessionID: s.ID,
				TopicKey:  topic.Key,
				Text:      q,
				Reask:     true,
				Remaining: remaining(s, topic),
			}, nil
		}
	}

	// 4. Record the answer and move on.
	recordAnswer(s, raw)
	if ReadyForDiagnosis(s, topic) {
		return e.diagnose(ctx, s, topic, false)
	}
	if e.early {
		if _, ok := topic.FullMatch(answerText(s)); ok {
			return e.diagnose(ctx, s, topic, true)
		}
	}
	if _, ok := NextQuestion(s, topic); !ok {
		return e.diagnose(ctx, s, topic, false)
	}
	return e.askNext(ctx, s, topic)
}

func redFlags(raw string, topics ...*catalog.Topic) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, t := range topics {
		if t == nil {
			continue
		}
		for _, f := range t.RedFlagsIn(raw) {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// recordAnswer appends raw when a question is outstanding, so answers never
// outnumber questions.
func recordAnswer(s *State, raw string) {
	if s.AnswersReceived >= s.QuestionsAsked {
		return
	}
	s.Answers = append(s.Answers, raw)
	s.AnswersReceived++
}

func (e *Engine) askNext(ctx context.Context, s *State, topic *catalog.Topic) (Decision, error) {
	q, ok := NextQuestion(s, topic)
	if !ok {
		return e.diagnose(ctx, s, topic, false)
	}
	s.QuestionsAsked++
	if err := e.save(ctx, s); err != nil {
		return nil, err
	}
	return AskQuestion{
		SessionID: s.ID,
		TopicKey:  topic.Key,
		Text:      q,
		First:     s.QuestionsAsked == 1,
		Remaining: remaining(s, topic),
	}, nil
}

func (e *Engine) escalate(ctx context.Context, s *State, topic *catalog.Topic, flags []string) (Decision, error) {
	s.Status = StatusEscalated
	s.RedFlags = flags
	s.Tier = catalog.TierMedicalReferral
	if err := e.save(ctx, s); err != nil {
		return nil, err
	}

	e.log.Warn("investigation escalated",
		zap.String("session_id", s.ID.String()),
		zap.String("topic", topic.Key),
		zap.Strings("red_flags", flags),
	)
	return Escalate{
		SessionID: s.ID,
		TopicKey:  topic.Key,
		Reason:    "red flag reported: " + strings.Join(flags, "; "),
		RedFlags:  append([]string(nil), flags...),
	}, nil
}

func (e *Engine) diagnose(ctx context.Context, s *State, topic *catalog.Topic, early bool) (Decision, error) {
	s.Status = StatusReadyForDiagnosis
	text := answerText(s)

	var (
		rule catalog.Rule
		ok   bool
	)
	if early {
		rule, ok = topic.FullMatch(text)
	} else {
		rule, ok = topic.Match(text)
	}
	outcome := topic.Fallback
	if ok {
		outcome = rule.Outcome
	}

	s.Tier = outcome.Tier
	s.Diagnosis = outcome.Diagnosis
	s.CorrectiveAction = outcome.CorrectiveAction
	s.Status = StatusCompleted
	if err := e.save(ctx, s); err != nil {
		return nil, err
	}

	e.log.Info("investigation diagnosed",
		zap.String("session_id", s.ID.String()),
		zap.String("topic", topic.Key),
		zap.String("tier", string(outcome.Tier)),
		zap.String("pattern", rule.Pattern),
		zap.Bool("early", early),
	)

	d := Diagnose{
		SessionID:        s.ID,
		TopicKey:         topic.Key,
		Tier:             outcome.Tier,
		Diagnosis:        outcome.Diagnosis,
		CorrectiveAction: outcome.CorrectiveAction,
		Fallback:         !ok,
		Early:            early,
	}
	if outcome.Tier == catalog.TierAnatomical {
		d.Alternatives = append([]string(nil), topic.Alternatives...)
	}
	return d, nil
}

func (e *Engine) save(ctx context.Context, s *State) error {
	if err := e.repo.Save(ctx, s); err != nil {
		return &StoreError{Op: "save", Err: err}
	}
	return nil
}

func answerText(s *State) string { return strings.Join(s.Answers, "\n") }

func remaining(s *State, topic *catalog.Topic) int {
	if n := topic.RequiredAnswers - s.AnswersReceived; n > 0 {
		return n
	}
	return 0
}
