package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fpang/minipaint/internal/plan"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultListLimit caps ListPlans when the caller passes no limit.
const DefaultListLimit = 50

// now is swapped in tests for deterministic ordering.
var now = time.Now

func (s *SQLiteStore) SavePlan(ctx context.Context, p *plan.ProjectPlan) (string, error) {
	if p == nil {
		return "", errors.New("nil plan")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}
	body := s.enc.EncodeAll(data, nil)

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (id, project_name, source, steps, warnings, created_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, p.ProjectName, p.Source, len(p.Steps), len(p.Warnings), now().UnixMilli(), body)
	if err != nil {
		return "", fmt.Errorf("insert plan: %w", err)
	}

	log.Info().
		Str("planId", id).
		Str("project", p.ProjectName).
		Int("json_bytes", len(data)).
		Int("stored_bytes", len(body)).
		Msg("Plan archived")
	return id, nil
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*plan.ProjectPlan, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM plans WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}

	data, err := s.dec.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress plan %s: %w", id, err)
	}
	var p plan.ProjectPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal plan %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLiteStore) ListPlans(ctx context.Context, limit int) ([]PlanSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_name, source, steps, warnings, created_at
		FROM plans
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	out := []PlanSummary{}
	for rows.Next() {
		var ps PlanSummary
		var created int64
		if err := rows.Scan(&ps.ID, &ps.ProjectName, &ps.Source, &ps.Steps, &ps.Warnings, &created); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		ps.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, ps)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeletePlan(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plan %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
