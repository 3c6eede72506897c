package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"card-admin/internal/model"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	occurredAt, err := time.Parse(time.RFC3339Nano, entry.OccurredAt)
	if err != nil {
		occurredAt = time.Now().UTC()
	}

	beforeJSON, err := marshalOptional(entry.Before)
	if err != nil {
		return fmt.Errorf("marshal before data: %w", err)
	}
	afterJSON, err := marshalOptional(entry.After)
	if err != nil {
		return fmt.Errorf("marshal after data: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_entries
		 (action, occurred_at, actor_user_id, actor_username, actor_ip,
		  status, resource, before_data, after_data, error_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.Action, occurredAt,
		entry.Actor.UserID, entry.Actor.Username, entry.Actor.IP,
		entry.Status, entry.Resource, beforeJSON, afterJSON, entry.Error)
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}

// Query expects a normalized query: Page >= 1, Limit > 0, From/To either
// empty or RFC 3339.
func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error) {
	whereClause, args := auditFilter(query)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_entries "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	dataQuery := fmt.Sprintf(
		`SELECT action, occurred_at, actor_user_id, actor_username, actor_ip,
		        status, resource, before_data, after_data, error_text
		 FROM audit_entries %s
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $%d OFFSET $%d`, whereClause, len(args)+1, len(args)+2)
	args = append(args, query.Limit, (query.Page-1)*query.Limit)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		var occurredAt time.Time
		var beforeJSON, afterJSON []byte

		if err := rows.Scan(
			&e.Action, &occurredAt,
			&e.Actor.UserID, &e.Actor.Username, &e.Actor.IP,
			&e.Status, &e.Resource, &beforeJSON, &afterJSON, &e.Error,
		); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}

		e.OccurredAt = occurredAt.UTC().Format(time.RFC3339Nano)
		e.Before = unmarshalOptional(beforeJSON)
		e.After = unmarshalOptional(afterJSON)
		entries = append(entries, e)
	}

	return entries, total, rows.Err()
}

func auditFilter(query model.AuditQuery) (string, []any) {
	where := make([]string, 0, 5)
	args := make([]any, 0, 7)

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if action := strings.TrimSpace(query.Action); action != "" {
		add("lower(action) = lower($%d)", action)
	}
	if actorID := strings.TrimSpace(query.ActorID); actorID != "" {
		add("actor_user_id = $%d", actorID)
	}
	if status := strings.TrimSpace(query.Status); status != "" {
		add("lower(status) = lower($%d)", status)
	}
	if from, err := time.Parse(time.RFC3339, strings.TrimSpace(query.From)); err == nil {
		add("occurred_at >= $%d", from)
	}
	if to, err := time.Parse(time.RFC3339, strings.TrimSpace(query.To)); err == nil {
		add("occurred_at <= $%d", to)
	}

	if len(where) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(where, " AND "), args
}

func marshalOptional(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalOptional(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
