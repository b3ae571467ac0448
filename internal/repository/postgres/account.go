package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/pkg/database"
	apperrors "github.com/evotags/evotags/pkg/errors"
)

const accountColumns = `id, platform_id, COALESCE(username, ''), first_name, COALESCE(last_name, ''), COALESCE(photo_url, ''), created_at, updated_at`

const upsertAccountSQL = `
		INSERT INTO accounts (id, platform_id, username, first_name, last_name, photo_url, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), NOW(), NOW())
		ON CONFLICT (platform_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			photo_url = COALESCE(NULLIF(EXCLUDED.photo_url, ''), accounts.photo_url),
			updated_at = NOW()
		RETURNING ` + accountColumns + `, (xmax = 0) AS inserted`

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool database.DBTX
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(pool database.DBTX) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Upsert creates or updates the account keyed by platform id.
func (r *AccountRepository) Upsert(ctx context.Context, a *domain.Account) (_ *domain.Account, _ bool, err error) {
	ctx, end := database.TraceQuery(ctx, "UpsertAccount", upsertAccountSQL)
	defer func() { end(err) }()

	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}

	var (
		out      domain.Account
		inserted bool
	)
	err = r.pool.QueryRow(ctx, upsertAccountSQL,
		id,
		a.PlatformID,
		a.Username,
		a.FirstName,
		a.LastName,
		a.PhotoURL,
	).Scan(
		&out.ID,
		&out.PlatformID,
		&out.Username,
		&out.FirstName,
		&out.LastName,
		&out.PhotoURL,
		&out.CreatedAt,
		&out.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("upsert account: %w", err)
	}

	return &out, inserted, nil
}

// GetByID retrieves an account by internal id.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return r.scanAccount(ctx, "GetAccountByID", query, id, id)
}

// GetByPlatformID retrieves an account by Telegram user id.
func (r *AccountRepository) GetByPlatformID(ctx context.Context, platformID int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE platform_id = $1`

	return r.scanAccount(ctx, "GetAccountByPlatformID", query, "platform:"+strconv.FormatInt(platformID, 10), platformID)
}

// List returns every account, newest first.
func (r *AccountRepository) List(ctx context.Context) (_ []domain.Account, err error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC, id DESC`

	ctx, end := database.TraceQuery(ctx, "ListAccounts", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(
			&a.ID,
			&a.PlatformID,
			&a.Username,
			&a.FirstName,
			&a.LastName,
			&a.PhotoURL,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}

	return accounts, nil
}

// DeletePlatformRange deletes accounts whose platform id is in [min, max].
// Their reviews, authored or received, go with them through the foreign keys.
func (r *AccountRepository) DeletePlatformRange(ctx context.Context, min, max int64) (_ int64, err error) {
	query := `DELETE FROM accounts WHERE platform_id BETWEEN $1 AND $2`

	ctx, end := database.TraceQuery(ctx, "DeleteAccountRange", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, min, max)
	if err != nil {
		return 0, fmt.Errorf("delete accounts: %w", err)
	}

	return ct.RowsAffected(), nil
}

func (r *AccountRepository) scanAccount(ctx context.Context, op, query, label string, arg any) (_ *domain.Account, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var a domain.Account
	err = r.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.PlatformID,
		&a.Username,
		&a.FirstName,
		&a.LastName,
		&a.PhotoURL,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("account", label)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &a, nil
}
