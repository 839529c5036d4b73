package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cleanflow/internal/config"
	"cleanflow/internal/db"
	"cleanflow/internal/domain"
	"cleanflow/internal/migrate"
	"cleanflow/internal/repo"
)

// Open prepares the workspace: database created, migrations applied, admin
// account seeded from config. Every entrypoint goes through here.
func Open(ctx context.Context, workspace string, cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if _, err := EnsureAdmin(ctx, repo.Repo{DB: conn}, cfg.Admin.Email, cfg.Admin.FullName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	return conn, nil
}

// EnsureAdmin seeds the administrator account on first run. The account is
// looked up by email; an existing one is returned untouched.
func EnsureAdmin(ctx context.Context, r repo.Repo, email, fullName string) (domain.Profile, error) {
	p, err := r.GetProfileByEmail(ctx, email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Profile{}, err
	}
	if fullName == "" {
		fullName = "Administrator"
	}
	p = domain.Profile{
		ID:         uuid.New().String(),
		FullName:   fullName,
		Email:      email,
		IsApproved: true,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Profile{}, err
	}
	defer tx.Rollback()
	if err := r.InsertProfileTx(ctx, tx, p); err != nil {
		return domain.Profile{}, err
	}
	if err := r.InsertRoleTx(ctx, tx, p.ID, domain.RoleAdmin); err != nil {
		return domain.Profile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}
