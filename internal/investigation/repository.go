package investigation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"symptom-coach/internal/catalog"
)

var (
	ErrNotFound        = errors.New("investigation not found")
	ErrAlreadyExists   = errors.New("open investigation already exists for user and topic")
	ErrVersionConflict = errors.New("investigation was modified concurrently")
)

// StoreError wraps any failure of the backing store. The engine never
// recovers from these; callers should answer with a generic retry message.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("investigation store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

type Repository interface {
	// Get returns the most recent session for the pair, terminal or not.
	Get(ctx context.Context, userID, topicKey string) (*State, error)
	GetByID(ctx context.Context, id uuid.UUID) (*State, error)
	// Create starts a session and fails with ErrAlreadyExists when a
	// non-terminal one is already open for the pair.
	Create(ctx context.Context, userID, topicKey string) (*State, error)
	// Save writes the whole record if s.Version still matches the stored
	// one, then bumps s.Version. A stale version yields ErrVersionConflict.
	Save(ctx context.Context, s *State) error
	// ListOpen returns the user's non-terminal sessions, most recently
	// updated first.
	ListOpen(ctx context.Context, userID string) ([]*State, error)
}

type postgresRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db, now: time.Now}
}

const selectColumns = `SELECT id, user_id, topic_key, status, questions_asked, answers_received, answers, opening_text,
	red_flags, tier, diagnosis, corrective_action, version, created_at, updated_at FROM investigations`

const uniqueViolation = "23505"

func (r *postgresRepo) Get(ctx context.Context, userID, topicKey string) (*State, error) {
	query := selectColumns + ` WHERE user_id = $1 AND topic_key = $2 ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, topicKey))
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*State, error) {
	query := selectColumns + ` WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresRepo) Create(ctx context.Context, userID, topicKey string) (*State, error) {
	now := r.now().UTC()
	s := &State{
		ID:        uuid.New(),
		UserID:    userID,
		TopicKey:  topicKey,
		Status:    StatusInProgress,
		Answers:   []string{},
		RedFlags:  []string{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The partial unique index on (user_id, topic_key) for open statuses
	// rejects a second open session.
	query := `
		INSERT INTO investigations (id, user_id, topic_key, status, questions_asked, answers_received, answers,
			opening_text, red_flags, tier, diagnosis, corrective_action, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, $5, '', $6, '', '', '', $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.TopicKey, s.Status, textArray(s.Answers), textArray(s.RedFlags), s.Version, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert investigation: %w", err)
	}
	return s, nil
}

func (r *postgresRepo) Save(ctx context.Context, s *State) error {
	updatedAt := r.now().UTC()

	query := `
		UPDATE investigations SET
			status = $2,
			questions_asked = $3,
			answers_received = $4,
			answers = $5,
			opening_text = $6,
			red_flags = $7,
			tier = $8,
			diagnosis = $9,
			corrective_action = $10,
			version = version + 1,
			updated_at = $11
		WHERE id = $1 AND version = $12
	`
	res, err := r.db.ExecContext(ctx, query,
		s.ID, s.Status, s.QuestionsAsked, s.AnswersReceived, textArray(s.Answers), s.OpeningText,
		textArray(s.RedFlags), string(s.Tier), s.Diagnosis, s.CorrectiveAction, updatedAt, s.Version)
	if err != nil {
		return fmt.Errorf("update investigation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update investigation: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}

	s.Version++
	s.UpdatedAt = updatedAt
	return nil
}

// textArray binds a slice to a TEXT[] NOT NULL column. pq encodes a nil
// StringArray as NULL, so nil becomes the empty array.
func textArray(v []string) pq.StringArray {
	if v == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(v)
}

func (r *postgresRepo) ListOpen(ctx context.Context, userID string) ([]*State, error) {
	query := selectColumns + ` WHERE user_id = $1 AND status IN ('in_progress', 'ready_for_diagnosis') ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list open investigations: %w", err)
	}
	defer rows.Close()

	var out []*State
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list open investigations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *postgresRepo) scanOne(row *sql.Row) (*State, error) {
	s, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func scanState(row rowScanner) (*State, error) {
	var (
		s        State
		answers  pq.StringArray
		redFlags pq.StringArray
		tier     string
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TopicKey,
		&s.Status,
		&s.QuestionsAsked,
		&s.AnswersReceived,
		&answers,
		&s.OpeningText,
		&redFlags,
		&tier,
		&s.Diagnosis,
		&s.CorrectiveAction,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan investigation: %w", err)
	}
	s.Answers = []string(answers)
	s.RedFlags = []string(redFlags)
	s.Tier = catalog.Tier(tier)
	return &s, nil
}
