package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"card-admin/internal/model"
	"card-admin/pkg/apierror"
)

const (
	AuditSuccess = "success"
	AuditFailure = "failure"
)

type actorContextKey struct{}

// ContextWithActor attaches the caller identity recorded on audit entries.
func ContextWithActor(ctx context.Context, actor model.AuditActor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) model.AuditActor {
	actor, _ := ctx.Value(actorContextKey{}).(model.AuditActor)
	return actor
}

type AuditService struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

// Log records an entry for the actor in ctx. Storage failures are logged
// and dropped; a nil service records nothing.
func (s *AuditService) Log(ctx context.Context, action string, status string, resource string, before any, after any, errText string) {
	s.LogAs(ctx, ActorFromContext(ctx), action, status, resource, before, after, errText)
}

func (s *AuditService) LogAs(ctx context.Context, actor model.AuditActor, action string, status string, resource string, before any, after any, errText string) {
	if s == nil || s.store == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: s.now().UTC().Format(time.RFC3339Nano),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Before:     before,
		After:      after,
		Error:      errText,
	}

	if err := s.store.Log(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("audit log write failed", "action", action, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query.Page, query.Limit = normalizePage(query.Page, query.Limit, 50, 200)

	from, err := parseOptionalAuditTime(query.From)
	if err != nil {
		return nil, model.Meta{}, apierror.Validation("invalid 'from' datetime format", "from")
	}
	to, err := parseOptionalAuditTime(query.To)
	if err != nil {
		return nil, model.Meta{}, apierror.Validation("invalid 'to' datetime format", "to")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, model.Meta{}, apierror.Validation("'to' must not be before 'from'", "to")
	}

	query.Action = strings.ToLower(strings.TrimSpace(query.Action))
	query.Status = strings.ToLower(strings.TrimSpace(query.Status))
	query.ActorID = strings.TrimSpace(query.ActorID)
	query.From = formatOptionalAuditTime(from)
	query.To = formatOptionalAuditTime(to)

	items, total, err := s.store.Query(ctx, query)
	if err != nil {
		return nil, model.Meta{}, err
	}

	return items, model.NewMeta(query.Page, query.Limit, total), nil
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	value, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}

func formatOptionalAuditTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
