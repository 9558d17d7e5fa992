package investigation

import (
	"github.com/google/uuid"

	"symptom-coach/internal/catalog"
)

type Kind string

const (
	KindAskQuestion Kind = "ask_question"
	KindEscalate    Kind = "escalate"
	KindDiagnose    Kind = "diagnose"
)

// Decision is what the engine wants said next. It is one of AskQuestion,
// Escalate or Diagnose; the set is closed.
type Decision interface {
	Kind() Kind
	Session() uuid.UUID
	decision()
}

type AskQuestion struct {
	SessionID uuid.UUID
	TopicKey  string
	Text      string
	// First is set on the opening question of a new session.
	First bool
	// Reask is set when the previous message carried no usable answer.
	Reask bool
	// Remaining is how many more answers are needed before a diagnosis.
	Remaining int
}

type Escalate struct {
	SessionID uuid.UUID
	TopicKey  string
	Reason    string
	RedFlags  []string
}

type Diagnose struct {
	SessionID        uuid.UUID
	TopicKey         string
	Tier             catalog.Tier
	Diagnosis        string
	CorrectiveAction string
	Alternatives     []string
	// Fallback is set when no pattern rule matched.
	Fallback bool
	// Early is set when a full rule match ended the session before the
	// topic's required answers were collected.
	Early bool
}

func (AskQuestion) Kind() Kind { return KindAskQuestion }
func (Escalate) Kind() Kind    { return KindEscalate }
func (Diagnose) Kind() Kind    { return KindDiagnose }

func (d AskQuestion) Session() uuid.UUID { return d.SessionID }
func (d Escalate) Session() uuid.UUID    { return d.SessionID }
func (d Diagnose) Session() uuid.UUID    { return d.SessionID }

func (AskQuestion) decision() {}
func (Escalate) decision()    {}
func (Diagnose) decision()    {}
