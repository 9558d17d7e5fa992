package investigation

import (
	"time"

	"github.com/google/uuid"

	"symptom-coach/internal/catalog"
)

type Status string

const (
	StatusInProgress        Status = "in_progress"
	StatusReadyForDiagnosis Status = "ready_for_diagnosis"
	StatusEscalated         Status = "escalated"
	StatusCompleted         Status = "completed"
)

func (s Status) Terminal() bool {
	return s == StatusEscalated || s == StatusCompleted
}

// State is one investigation session for a (user, topic) pair. A terminal
// session is never reopened; the next message on the topic gets a new ID.
type State struct {
	ID       uuid.UUID `json:"id" db:"id"`
	UserID   string    `json:"user_id" db:"user_id"`
	TopicKey string    `json:"topic_key" db:"topic_key"`

	QuestionsAsked  int      `json:"questions_asked" db:"questions_asked"`
	AnswersReceived int      `json:"answers_received" db:"answers_received"`
	Answers         []string `json:"answers" db:"answers"`
	OpeningText     string   `json:"opening_text" db:"opening_text"`

	Status           Status       `json:"status" db:"status"`
	RedFlags         []string     `json:"red_flags,omitempty" db:"red_flags"`
	Tier             catalog.Tier `json:"tier,omitempty" db:"tier"`
	Diagnosis        string       `json:"diagnosis,omitempty" db:"diagnosis"`
	CorrectiveAction string       `json:"corrective_action,omitempty" db:"corrective_action"`

	// Version guards Save against lost updates.
	Version   int       `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (s *State) Terminal() bool { return s.Status.Terminal() }

// ReadyForDiagnosis reports whether enough answers were collected for topic.
func ReadyForDiagnosis(s *State, topic *catalog.Topic) bool {
	return s.AnswersReceived >= topic.RequiredAnswers
}

// NextQuestion returns the first question of topic not yet asked in s.
func NextQuestion(s *State, topic *catalog.Topic) (string, bool) {
	if s.QuestionsAsked < 0 || s.QuestionsAsked >= len(topic.Questions) {
		return "", false
	}
	return topic.Questions[s.QuestionsAsked], true
}

// pendingQuestion is the question the user is expected to be answering.
func pendingQuestion(s *State, topic *catalog.Topic) (string, bool) {
	i := s.QuestionsAsked - 1
	if i < 0 || i >= len(topic.Questions) {
		return "", false
	}
	return topic.Questions[i], true
}

func (s *State) clone() *State {
	c := *s
	c.Answers = append([]string(nil), s.Answers...)
	c.RedFlags = append([]string(nil), s.RedFlags...)
	return &c
}
