package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/pkg/database"
)

const (
	lockReviewPairSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	savepointSQL      = `SAVEPOINT review_insert`
	rollbackToSQL     = `ROLLBACK TO SAVEPOINT review_insert`
	releaseSQL        = `RELEASE SAVEPOINT review_insert`

	insertReviewSQL = `
		INSERT INTO reviews (id, author_id, target_id, talents_answer, client_answer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`

	updateLatestReviewSQL = `
		UPDATE reviews
		SET talents_answer = $1, client_answer = $2, updated_at = NOW()
		WHERE id = (
			SELECT id FROM reviews
			WHERE author_id = $3 AND target_id = $4
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
		RETURNING id`
)

// reviewsPrimaryKey is the one unique constraint that is never a pair
// constraint; a violation of it is a real error.
const reviewsPrimaryKey = "reviews_pkey"

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Submit inserts r inside a transaction that holds an advisory lock on the
// (author, target) pair. When a leftover unique constraint on the pair
// rejects the insert, the most recent review of the pair is updated instead.
func (r *ReviewRepository) Submit(ctx context.Context, rv *domain.Review) (_ *domain.SubmitResult, err error) {
	ctx, end := database.TraceQuery(ctx, "SubmitReview", insertReviewSQL)
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	result, err := submitInTx(ctx, tx, rv)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return result, nil
}

func submitInTx(ctx context.Context, tx pgx.Tx, rv *domain.Review) (*domain.SubmitResult, error) {
	if _, err := tx.Exec(ctx, lockReviewPairSQL, rv.AuthorID+":"+rv.TargetID); err != nil {
		return nil, fmt.Errorf("lock review pair: %w", err)
	}
	if _, err := tx.Exec(ctx, savepointSQL); err != nil {
		return nil, fmt.Errorf("create savepoint: %w", err)
	}

	_, err := tx.Exec(ctx, insertReviewSQL,
		rv.ID,
		rv.AuthorID,
		rv.TargetID,
		rv.TalentsAnswer,
		rv.ClientAnswer,
		rv.CreatedAt,
	)
	if err == nil {
		if _, err := tx.Exec(ctx, releaseSQL); err != nil {
			return nil, fmt.Errorf("release savepoint: %w", err)
		}
		return &domain.SubmitResult{ReviewID: rv.ID}, nil
	}

	constraint, unique := database.UniqueViolation(err)
	if !unique || constraint == reviewsPrimaryKey {
		return nil, fmt.Errorf("insert review: %w", err)
	}

	// The failed insert aborted the transaction up to the savepoint.
	if _, err := tx.Exec(ctx, rollbackToSQL); err != nil {
		return nil, fmt.Errorf("rollback to savepoint: %w", err)
	}

	var id string
	err = tx.QueryRow(ctx, updateLatestReviewSQL,
		rv.TalentsAnswer,
		rv.ClientAnswer,
		rv.AuthorID,
		rv.TargetID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("update latest review after %s conflict: %w", constraint, err)
	}

	return &domain.SubmitResult{ReviewID: id, Updated: true}, nil
}

// ListByTarget returns the reviews about targetID, newest first, without
// author columns.
func (r *ReviewRepository) ListByTarget(ctx context.Context, targetID string) (_ []domain.ReviewView, err error) {
	query := `
		SELECT id, talents_answer, client_answer, created_at
		FROM reviews
		WHERE target_id = $1
		ORDER BY created_at DESC, id DESC`

	ctx, end := database.TraceQuery(ctx, "ListReviewsByTarget", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	views := make([]domain.ReviewView, 0)
	for rows.Next() {
		var v domain.ReviewView
		if err := rows.Scan(&v.ID, &v.TalentsAnswer, &v.ClientAnswer, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}

	return views, nil
}

// Feed returns the newest reviews system-wide joined with their target.
func (r *ReviewRepository) Feed(ctx context.Context, limit int) (_ []domain.FeedItem, err error) {
	query := `
		SELECT r.id, r.talents_answer, r.client_answer, r.created_at,
		       a.id, a.first_name, COALESCE(a.last_name, ''), COALESCE(a.photo_url, '')
		FROM reviews r
		JOIN accounts a ON a.id = r.target_id
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $1`

	ctx, end := database.TraceQuery(ctx, "ReviewFeed", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}
	defer rows.Close()

	items := make([]domain.FeedItem, 0, limit)
	for rows.Next() {
		var it domain.FeedItem
		if err := rows.Scan(
			&it.ID,
			&it.TalentsAnswer,
			&it.ClientAnswer,
			&it.CreatedAt,
			&it.Target.ID,
			&it.Target.FirstName,
			&it.Target.LastName,
			&it.Target.PhotoURL,
		); err != nil {
			return nil, fmt.Errorf("scan feed row: %w", err)
		}
		it.Target.DisplayName = domain.DisplayName(it.Target.FirstName, it.Target.LastName)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed rows: %w", err)
	}

	return items, nil
}

// ReviewedTargets returns the distinct targets authorID has reviewed.
func (r *ReviewRepository) ReviewedTargets(ctx context.Context, authorID string) (_ []string, err error) {
	query := `SELECT DISTINCT target_id FROM reviews WHERE author_id = $1`

	ctx, end := database.TraceQuery(ctx, "ReviewedTargets", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, authorID)
	if err != nil {
		return nil, fmt.Errorf("query reviewed targets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan target id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate target ids: %w", err)
	}

	return ids, nil
}

// Exists reports whether authorID has reviewed targetID.
func (r *ReviewRepository) Exists(ctx context.Context, authorID, targetID string) (_ bool, err error) {
	query := `SELECT EXISTS (SELECT 1 FROM reviews WHERE author_id = $1 AND target_id = $2)`

	ctx, end := database.TraceQuery(ctx, "ReviewExists", query)
	defer func() { end(err) }()

	var exists bool
	if err = r.pool.QueryRow(ctx, query, authorID, targetID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check review exists: %w", err)
	}

	return exists, nil
}
