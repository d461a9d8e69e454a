package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"childgen/internal/domain"
	"childgen/internal/infra"
	"childgen/internal/sqlinline"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a generation repository on top of exec,
// usually an *infra.SQLRunner wrapping the pgx pool.
func NewGenerationRepository(exec infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: exec}
}

// EnsureSchema creates the generation table and its index when missing.
func (r *GenerationRepositoryPG) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{sqlinline.QCreateGenerationsTable, sqlinline.QCreateGenerationsIndex} {
		if _, err := r.sql.Exec(ctx, q); err != nil {
			return fmt.Errorf("repo: ensure generations schema: %w", err)
		}
	}
	return nil
}

// Create inserts a record, assigning an id and timestamp when absent.
func (r *GenerationRepositoryPG) Create(ctx context.Context, g *domain.Generation) error {
	if g == nil {
		return errors.New("repo: generation is required")
	}
	if strings.TrimSpace(g.ID) == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertGeneration,
		g.ID,
		g.UserID,
		g.ChildKey,
		g.PredictionID,
		g.Outcome,
		g.Status,
		g.FileURL,
		g.Reason,
		g.Fallback,
		g.WithImages,
		g.PollAttempts,
		g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repo: insert generation: %w", err)
	}
	return nil
}

// ListByUser returns the most recent generations for a user, newest first.
func (r *GenerationRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListGenerationsByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: list generations: %w", err)
	}
	defer rows.Close()

	var out []domain.Generation
	for rows.Next() {
		var g domain.Generation
		if err := rows.Scan(
			&g.ID,
			&g.UserID,
			&g.ChildKey,
			&g.PredictionID,
			&g.Outcome,
			&g.Status,
			&g.FileURL,
			&g.Reason,
			&g.Fallback,
			&g.WithImages,
			&g.PollAttempts,
			&g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("repo: scan generation: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: list generations: %w", err)
	}
	return out, nil
}
