package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	apperrors "recallgraph/pkg/errors"
)

// Save is the relational record a job processes. Owned by the external
// save-creation service; this store only reads it.
type Save struct {
	ID        string
	UserPhone string
	Title     string
	Summary   string
	Category  string
	Tags      []string
	Source    string
	Note      string
	CreatedAt time.Time
}

// SaveStore reads save rows
type SaveStore struct {
	db *pgxpool.Pool
}

// NewSaveStore creates a save store over the given pool
func NewSaveStore(db *pgxpool.Pool) *SaveStore {
	return &SaveStore{db: db}
}

// GetSave fetches a save by id. A missing row returns ErrSaveNotFound,
// which the job layer classifies as terminal.
func (s *SaveStore) GetSave(ctx context.Context, id string) (*Save, error) {
	query := `
		SELECT id, user_phone, title, summary, category, tags, source, note, created_at
		FROM saves
		WHERE id = $1
	`

	var save Save
	err := s.db.QueryRow(ctx, query, id).Scan(
		&save.ID,
		&save.UserPhone,
		&save.Title,
		&save.Summary,
		&save.Category,
		&save.Tags,
		&save.Source,
		&save.Note,
		&save.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewSaveNotFound(id)
		}
		return nil, fmt.Errorf("fetching save %s: %w", id, err)
	}

	return &save, nil
}
