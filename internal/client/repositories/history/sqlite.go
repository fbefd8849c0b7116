package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/client/models"
	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/dbx"
)

// timeLayout has a fixed-width fraction so stored values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const lastSyncKey = "history.last_sync"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

var _ Repository = (*SQLiteRepository)(nil)

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, emails []models.Email) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM emails`); err != nil {
			return fmt.Errorf("failed to clear emails: %w", err)
		}
		for _, e := range emails {
			if err := upsert(ctx, tx, e); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO metadata (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, lastSyncKey, r.now().UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to record sync time: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) Upsert(ctx context.Context, e models.Email) error {
	return upsert(ctx, r.db, e)
}

func upsert(ctx context.Context, db dbx.DBTX, e models.Email) error {
	recipients, err := json.Marshal(nonNil(e.Recipients))
	if err != nil {
		return err
	}
	paths, err := json.Marshal(nonNil(e.AttachmentPaths))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO emails (id, sender, recipients, subject, body, sent_at, status, attachment_paths)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sender = excluded.sender,
			recipients = excluded.recipients,
			subject = excluded.subject,
			body = excluded.body,
			sent_at = excluded.sent_at,
			status = excluded.status,
			attachment_paths = excluded.attachment_paths
	`, e.ID, e.Sender, string(recipients), e.Subject, e.Body, e.SentAt.UTC().Format(timeLayout), string(e.Status), string(paths))
	if err != nil {
		return fmt.Errorf("failed to upsert email %d: %w", e.ID, err)
	}
	return nil
}

const selectEmail = `SELECT id, sender, recipients, subject, body, sent_at, status, attachment_paths FROM emails`

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Email, error) {
	rows, err := r.db.QueryContext(ctx, selectEmail+` ORDER BY sent_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	var out []models.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate email rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Email, error) {
	e, err := scanEmail(r.db.QueryRowContext(ctx, selectEmail+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *SQLiteRepository) LastSync(ctx context.Context) (time.Time, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, lastSyncKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read sync time: %w", err)
	}
	return time.Parse(timeLayout, v)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmail(s scanner) (models.Email, error) {
	var (
		e                       models.Email
		recipients, paths, sent string
		status                  string
	)
	if err := s.Scan(&e.ID, &e.Sender, &recipients, &e.Subject, &e.Body, &sent, &status, &paths); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan email row: %w", err)
	}
	if err := json.Unmarshal([]byte(recipients), &e.Recipients); err != nil {
		return e, fmt.Errorf("email %d recipients: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(paths), &e.AttachmentPaths); err != nil {
		return e, fmt.Errorf("email %d attachment paths: %w", e.ID, err)
	}
	t, err := time.Parse(timeLayout, sent)
	if err != nil {
		return e, fmt.Errorf("email %d sent_at: %w", e.ID, err)
	}
	e.SentAt = t
	e.Status = models.EmailStatus(status)
	if len(e.AttachmentPaths) == 0 {
		e.AttachmentPaths = nil
	}
	return e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
