package emails

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/dbx"
	"github.com/dmitrijs2005/chunkmail/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
// Address lists are stored as JSONB arrays.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) Create(ctx context.Context, e *models.Email) error {
	recipients, err := json.Marshal(nonNil(e.Recipients))
	if err != nil {
		return err
	}
	paths, err := json.Marshal(nonNil(e.AttachmentPaths))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO emails (sender, recipients, subject, body, attachment_paths, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err = r.db.QueryRowContext(ctx, query,
		e.Sender, string(recipients), e.Subject, e.Body, string(paths), string(e.Status), e.SentAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert email: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status models.EmailStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE emails SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update email %d: %w", id, err)
	}
	return dbx.ExpectOneRow(res)
}

const selectEmail = `SELECT id, sender, recipients, subject, body, attachment_paths, status, sent_at FROM emails`

func (r *PostgresRepository) List(ctx context.Context) ([]models.Email, error) {
	rows, err := r.db.QueryContext(ctx, selectEmail+` ORDER BY sent_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	result := []models.Email{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate emails: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Email, error) {
	e, err := scanEmail(r.db.QueryRowContext(ctx, selectEmail+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmail(s scanner) (models.Email, error) {
	var (
		e                 models.Email
		recipients, paths []byte
		status            string
	)
	if err := s.Scan(&e.ID, &e.Sender, &recipients, &e.Subject, &e.Body, &paths, &status, &e.SentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan email: %w", err)
	}
	if err := json.Unmarshal(recipients, &e.Recipients); err != nil {
		return e, fmt.Errorf("email %d recipients: %w", e.ID, err)
	}
	if err := json.Unmarshal(paths, &e.AttachmentPaths); err != nil {
		return e, fmt.Errorf("email %d attachment paths: %w", e.ID, err)
	}
	e.Status = models.EmailStatus(status)
	return e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
