package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"card-admin/internal/model"
)

// credit_limit travels as text in both directions so the NUMERIC value is
// never rounded through float64.
const cardColumns = `id, user_id, bank_name, card_name, last_four, credit_limit::text, currency,
	billing_day, due_day, is_active, note, created_at, updated_at`

type CardRepository struct {
	pool *pgxpool.Pool
}

func NewCardRepository(pool *pgxpool.Pool) *CardRepository {
	return &CardRepository{pool: pool}
}

func (r *CardRepository) Create(ctx context.Context, c model.Card) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO cards (id, user_id, bank_name, card_name, last_four, credit_limit, currency,
		                    billing_day, due_day, is_active, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.UserID, c.BankName, c.CardName, c.LastFour, c.CreditLimit.StringFixed(2), c.Currency,
		c.BillingDay, c.DueDay, c.IsActive, c.Note, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	return nil
}

func (r *CardRepository) FindByID(ctx context.Context, userID string, id string) (model.Card, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM cards
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)

	c, err := scanCard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Card{}, model.ErrCardNotFound
	}
	if err != nil {
		return model.Card{}, fmt.Errorf("find card: %w", err)
	}
	return c, nil
}

func (r *CardRepository) ListByUser(ctx context.Context, userID string) ([]model.Card, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+cardColumns+` FROM cards
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	cards := make([]model.Card, 0)
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (r *CardRepository) Update(ctx context.Context, c model.Card) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cards SET bank_name = $3, card_name = $4, last_four = $5, credit_limit = $6::numeric,
		                  currency = $7, billing_day = $8, due_day = $9, is_active = $10, note = $11,
		                  updated_at = $12
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`,
		c.ID, c.UserID, c.BankName, c.CardName, c.LastFour, c.CreditLimit.StringFixed(2),
		c.Currency, c.BillingDay, c.DueDay, c.IsActive, c.Note, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCardNotFound
	}
	return nil
}

func (r *CardRepository) SoftDelete(ctx context.Context, userID string, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cards SET deleted_at = $3, updated_at = $3
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID, at)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCardNotFound
	}
	return nil
}

func scanCard(row pgx.Row) (model.Card, error) {
	var c model.Card
	var limit string
	if err := row.Scan(&c.ID, &c.UserID, &c.BankName, &c.CardName, &c.LastFour, &limit, &c.Currency,
		&c.BillingDay, &c.DueDay, &c.IsActive, &c.Note, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return model.Card{}, err
	}

	parsed, err := decimal.NewFromString(limit)
	if err != nil {
		return model.Card{}, fmt.Errorf("parse credit limit %q: %w", limit, err)
	}
	c.CreditLimit = parsed
	return c, nil
}
