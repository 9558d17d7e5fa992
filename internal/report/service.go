package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"symptom-coach/internal/investigation"
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// DefaultFontPaths are tried in order when no font path is configured.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

var ErrNoFont = errors.New("no usable TTF font for the referral report")

type Service struct {
	tgClient    TelegramClient
	coachChatID int64
	fontPaths   []string
	log         *zap.Logger
	now         func() time.Time
}

func NewService(tg TelegramClient, coachChatID int64, fontPaths []string, log *zap.Logger) *Service {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		tgClient:    tg,
		coachChatID: coachChatID,
		fontPaths:   fontPaths,
		log:         log.Named("report"),
		now:         time.Now,
	}
}

// Enabled reports whether reports have somewhere to go.
func (s *Service) Enabled() bool {
	return s.tgClient != nil && s.coachChatID != 0
}

// SendReferralReport sends the coach a PDF summary of a session that ended
// in a referral. Without a usable font the same summary goes out as text.
func (s *Service) SendReferralReport(ctx context.Context, st *investigation.State, d investigation.Decision) error {
	if !s.Enabled() {
		return nil
	}

	doc, err := s.Render(st, d)
	if errors.Is(err, ErrNoFont) {
		s.log.Warn("falling back to text report", zap.Error(err))
		return s.tgClient.SendMessage(ctx, s.coachChatID, Summary(st, d))
	}
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("referral_%s.pdf", st.ID.String())
	if err := s.tgClient.SendDocument(ctx, s.coachChatID, doc, fileName); err != nil {
		return fmt.Errorf("send referral document: %w", err)
	}
	return nil
}

// Render lays the session out on A4 pages.
func (s *Service) Render(st *investigation.State, d investigation.Decision) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	// DejaVu covers the accents in Portuguese answers.
	var fontErr error
	loaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err != nil {
			fontErr = err
			continue
		}
		loaded = true
		break
	}
	if !loaded {
		return nil, fmt.Errorf("%w: %v", ErrNoFont, fontErr)
	}

	w := &pageWriter{pdf: &pdf}
	w.heading(20, "Referral report")
	w.text(11, fmt.Sprintf("Date: %s", s.now().Format("02.01.2006 15:04")))
	for _, line := range header(st) {
		w.text(11, line)
	}
	w.gap(10)

	w.heading(14, "Opening message")
	w.text(11, st.OpeningText)
	w.gap(10)

	w.heading(14, "Answers")
	if len(st.Answers) == 0 {
		w.text(11, "- none collected")
	}
	for i, a := range st.Answers {
		w.text(11, fmt.Sprintf("%d. %s", i+1, a))
	}
	w.gap(10)

	w.heading(14, "Outcome")
	for _, line := range outcome(d) {
		w.text(11, line)
	}
	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Summary is the plain-text form of the report.
func Summary(st *investigation.State, d investigation.Decision) string {
	var b strings.Builder
	b.WriteString("Referral report\n")
	for _, line := range header(st) {
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "\nOpening message: %s\n", st.OpeningText)
	for i, a := range st.Answers {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a)
	}
	b.WriteString("\n")
	b.WriteString(strings.Join(outcome(d), "\n"))
	return b.String()
}

func header(st *investigation.State) []string {
	return []string{
		fmt.Sprintf("User: %s", st.UserID),
		fmt.Sprintf("Session: %s", st.ID),
		fmt.Sprintf("Topic: %s", st.TopicKey),
		fmt.Sprintf("Status: %s", st.Status),
	}
}

func outcome(d investigation.Decision) []string {
	switch v := d.(type) {
	case investigation.Escalate:
		return []string{
			"Escalated on red flag(s): " + strings.Join(v.RedFlags, "; "),
			"The user was advised to seek professional evaluation.",
		}
	case investigation.Diagnose:
		return []string{
			fmt.Sprintf("Tier: %s", v.Tier),
			fmt.Sprintf("Diagnosis: %s", v.Diagnosis),
			fmt.Sprintf("Advice: %s", v.CorrectiveAction),
		}
	}
	return []string{fmt.Sprintf("Decision: %s", d.Kind())}
}

// pageWriter wraps lines and breaks pages; the first error sticks.
type pageWriter struct {
	pdf *gopdf.GoPdf
	err error
}

const (
	lineWidth  = 500
	pageBottom = 780
)

func (w *pageWriter) heading(size float64, s string) {
	w.text(size, s)
	w.gap(4)
}

func (w *pageWriter) text(size float64, s string) {
	if w.err != nil {
		return
	}
	if w.err = w.pdf.SetFont("DejaVu", "", size); w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(s, lineWidth)
	if err != nil {
		// SplitText rejects empty strings.
		lines = []string{s}
	}
	for _, l := range lines {
		if w.pdf.GetY() > pageBottom {
			w.pdf.AddPage()
		}
		if w.err = w.pdf.Cell(nil, l); w.err != nil {
			return
		}
		w.pdf.Br(size + 4)
	}
}

func (w *pageWriter) gap(h float64) {
	w.pdf.Br(h)
}
