package investigation

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"symptom-coach/internal/catalog"
)

// Reply is the user-facing rendering of a Decision.
type Reply struct {
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	SessionID uuid.UUID `json:"session_id"`
	TopicKey  string    `json:"topic_key"`
}

var replyTemplates = template.Must(template.New("replies").Funcs(template.FuncMap{"join": strings.Join}).Parse(`
{{- define "ask_question" -}}
{{- if .Reask}}I didn't quite get that. {{end -}}
{{.Text}}
{{- end}}

{{- define "escalate" -}}
What you describe needs attention: {{join .RedFlags ", "}}.
Please stop training this area and seek professional evaluation from a doctor or physiotherapist as soon as possible.
{{- end}}

{{- define "diagnose_medical_referral" -}}
Based on your answers: {{.Diagnosis}}.
This is outside what we can safely handle with training changes. Please seek professional evaluation.
{{- with .CorrectiveAction}}
{{.}}
{{- end}}
{{- end}}

{{- define "diagnose" -}}
Based on your answers: {{.Diagnosis}}.
What to do: {{.CorrectiveAction}}
{{- with .Alternatives}}
Alternatives you can use meanwhile:
{{- range .}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Fallback}}
If it doesn't improve, tell me more and we can look at it again.
{{- end}}
{{- end}}
`))

// Compose renders d. The templates are fixed, so rendering cannot fail on
// well-formed decisions.
func Compose(d Decision) Reply {
	r := Reply{Kind: d.Kind(), SessionID: d.Session()}

	var (
		name string
		data any
	)
	switch v := d.(type) {
	case AskQuestion:
		r.TopicKey, name, data = v.TopicKey, "ask_question", v
	case Escalate:
		r.TopicKey, name, data = v.TopicKey, "escalate", v
	case Diagnose:
		r.TopicKey, name, data = v.TopicKey, "diagnose", v
		if v.Tier == catalog.TierMedicalReferral {
			name = "diagnose_medical_referral"
		}
	}

	var buf bytes.Buffer
	if err := replyTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		r.Text = "Something went wrong on our side. Please try again."
		return r
	}
	r.Text = strings.TrimSpace(buf.String())
	return r
}
