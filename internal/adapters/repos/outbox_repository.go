package repos

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/architeacher/svc-icqueue/internal/domain"
)

const outboxEventsTable = "outbox_events"

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	outboxColumns = []string{
		"id", "routing_key", "payload", "headers", "retry_count", "max_retries", "status",
		"error_details", "created_at", "started_at", "published_at", "next_retry_at",
	}
)

// OutboxSchema creates the outbox table and its indexes.
//
//go:embed schema.sql
var OutboxSchema string

type (
	OutboxRepository struct {
		conn       *sqlx.DB
		claimLease time.Duration
	}

	outboxEventRow struct {
		ID           string     `db:"id"`
		RoutingKey   string     `db:"routing_key"`
		Payload      []byte     `db:"payload"`
		Headers      []byte     `db:"headers"`
		RetryCount   int        `db:"retry_count"`
		MaxRetries   int        `db:"max_retries"`
		Status       string     `db:"status"`
		ErrorDetails *string    `db:"error_details"`
		CreatedAt    time.Time  `db:"created_at"`
		StartedAt    *time.Time `db:"started_at"`
		PublishedAt  *time.Time `db:"published_at"`
		NextRetryAt  *time.Time `db:"next_retry_at"`
	}
)

// NewOutboxRepository returns a repository over db. An event left in processing
// longer than claimLease is claimable again; a zero lease disables reclaiming.
func NewOutboxRepository(db *sqlx.DB, claimLease time.Duration) *OutboxRepository {
	return &OutboxRepository{
		conn:       db,
		claimLease: claimLease,
	}
}

// Migrate creates the outbox table when it does not exist yet.
func (r *OutboxRepository) Migrate(ctx context.Context) error {
	if _, err := r.conn.ExecContext(ctx, OutboxSchema); err != nil {
		return fmt.Errorf("failed to apply outbox schema: %w", err)
	}

	return nil
}

func (r *OutboxRepository) Save(ctx context.Context, event *domain.OutboxEvent) error {
	query, args, err := buildInsertQuery(event)
	if err != nil {
		return err
	}

	if _, err := r.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

// FindPending finds pending outbox events, oldest first.
func (r *OutboxRepository) FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	return r.findByCriteria(
		ctx,
		sq.Eq{"status": string(domain.OutboxStatusPending)},
		"created_at ASC",
		limit,
		"pending outbox events",
	)
}

// FindRetryable finds failed events whose retry time has come, and events whose
// processing claim outlived the lease.
// Permanently failed events have no next_retry_at and are never returned.
func (r *OutboxRepository) FindRetryable(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	return r.findByCriteria(
		ctx,
		retryableCriteria(r.staleBefore()),
		"next_retry_at ASC NULLS FIRST",
		limit,
		"retryable outbox events",
	)
}

func (r *OutboxRepository) findByCriteria(
	ctx context.Context,
	criteria sq.Sqlizer,
	orderBy string,
	limit int,
	errorContext string,
) ([]*domain.OutboxEvent, error) {
	query, args, err := psql.Select(outboxColumns...).
		From(outboxEventsTable).
		Where(criteria).
		OrderBy(orderBy).
		Limit(uint64(max(limit, 1))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var rows []outboxEventRow
	if err := r.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", errorContext, err)
	}

	events := make([]*domain.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		event, err := row.toDomain()
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	return events, nil
}

// ClaimForProcessing moves a pending or failed event to processing in one statement,
// so that concurrent publishers never publish the same event twice.
func (r *OutboxRepository) ClaimForProcessing(ctx context.Context, eventID string) (*domain.OutboxEvent, error) {
	query, args, err := buildClaimQuery(eventID, r.staleBefore())
	if err != nil {
		return nil, err
	}

	var row outboxEventRow
	if err := r.conn.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrEventAlreadyTaken, eventID)
		}

		return nil, fmt.Errorf("failed to claim event: %w", err)
	}

	return row.toDomain()
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	return r.update(ctx, eventID, "published", map[string]any{
		"status":       string(domain.OutboxStatusPublished),
		"published_at": sq.Expr("NOW()"),
	})
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, eventID string, errorDetails string, nextRetryAt *time.Time) error {
	return r.update(ctx, eventID, "failed", map[string]any{
		"status":        string(domain.OutboxStatusFailed),
		"retry_count":   sq.Expr("retry_count + 1"),
		"error_details": errorDetails,
		"next_retry_at": nextRetryAt,
	})
}

func (r *OutboxRepository) MarkPermanentlyFailed(ctx context.Context, eventID string, errorDetails string) error {
	return r.update(ctx, eventID, "permanently failed", map[string]any{
		"status":        string(domain.OutboxStatusFailed),
		"retry_count":   sq.Expr("retry_count + 1"),
		"error_details": errorDetails,
		"next_retry_at": nil,
	})
}

func (r *OutboxRepository) update(ctx context.Context, eventID, action string, values map[string]any) error {
	query, args, err := psql.Update(outboxEventsTable).
		SetMap(values).
		Where(sq.Eq{"id": eventID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := r.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark event as %s: %w", action, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrEventNotFound, eventID)
	}

	return nil
}

func buildInsertQuery(event *domain.OutboxEvent) (string, []any, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	if len(event.Payload) == 0 {
		return "", nil, fmt.Errorf("outbox event %s has no payload", event.ID)
	}

	headers, err := json.Marshal(event.Headers)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal headers: %w", err)
	}

	query, args, err := psql.Insert(outboxEventsTable).
		Columns("id", "routing_key", "payload", "headers", "retry_count", "max_retries", "status", "created_at").
		Values(event.ID, event.RoutingKey, []byte(event.Payload), headers,
			event.RetryCount, event.MaxRetries, string(event.Status), event.CreatedAt).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	return query, args, nil
}

func (r *OutboxRepository) staleBefore() *time.Time {
	if r.claimLease <= 0 {
		return nil
	}

	cutoff := time.Now().Add(-r.claimLease)

	return &cutoff
}

func buildClaimQuery(eventID string, staleBefore *time.Time) (string, []any, error) {
	var claimable sq.Sqlizer = sq.Eq{
		"status": []string{string(domain.OutboxStatusPending), string(domain.OutboxStatusFailed)},
	}
	if staleBefore != nil {
		claimable = sq.Or{claimable, staleClaimCriteria(*staleBefore)}
	}

	query, args, err := psql.Update(outboxEventsTable).
		Set("status", string(domain.OutboxStatusProcessing)).
		Set("started_at", sq.Expr("NOW()")).
		Where(sq.And{
			sq.Eq{"id": eventID},
			claimable,
		}).
		Suffix("RETURNING " + strings.Join(outboxColumns, ", ")).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build update query: %w", err)
	}

	return query, args, nil
}

func retryableCriteria(staleBefore *time.Time) sq.Sqlizer {
	failed := sq.And{
		sq.Eq{"status": string(domain.OutboxStatusFailed)},
		sq.NotEq{"next_retry_at": nil},
		sq.Expr("next_retry_at <= NOW()"),
		sq.Expr("retry_count < max_retries"),
	}
	if staleBefore == nil {
		return failed
	}

	return sq.Or{failed, staleClaimCriteria(*staleBefore)}
}

// staleClaimCriteria matches events claimed before cutoff that never reached
// a final status, e.g. because the publisher died mid publish.
func staleClaimCriteria(cutoff time.Time) sq.Sqlizer {
	return sq.And{
		sq.Eq{"status": string(domain.OutboxStatusProcessing)},
		sq.Lt{"started_at": cutoff},
	}
}

func (row outboxEventRow) toDomain() (*domain.OutboxEvent, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse id: %w", err)
	}

	var headers map[string]string
	if len(row.Headers) != 0 {
		if err := json.Unmarshal(row.Headers, &headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers of event %s: %w", row.ID, err)
		}
	}

	return &domain.OutboxEvent{
		ID:           id,
		RoutingKey:   row.RoutingKey,
		Payload:      json.RawMessage(row.Payload),
		Headers:      headers,
		RetryCount:   row.RetryCount,
		MaxRetries:   row.MaxRetries,
		Status:       domain.OutboxStatus(row.Status),
		ErrorDetails: row.ErrorDetails,
		CreatedAt:    row.CreatedAt,
		StartedAt:    row.StartedAt,
		PublishedAt:  row.PublishedAt,
		NextRetryAt:  row.NextRetryAt,
	}, nil
}
