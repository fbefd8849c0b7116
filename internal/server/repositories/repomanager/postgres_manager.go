package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/chunkmail/internal/server/migrations"
	"github.com/dmitrijs2005/chunkmail/internal/server/repositories/emails"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
	db     *sql.DB
	emails emails.Repository
}

func NewPostgresRepositoryManager(dsn string) (*PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return newPostgresManager(db), nil
}

func newPostgresManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{db: db, emails: emails.NewPostgresRepository(db)}
}

func (m *PostgresRepositoryManager) Emails() emails.Repository { return m.emails }

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	p, err := goose.NewProvider(goose.DialectPostgres, m.db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (m *PostgresRepositoryManager) Close() error { return m.db.Close() }
