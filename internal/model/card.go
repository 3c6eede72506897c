package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Card struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	BankName    string          `json:"bank_name"`
	CardName    string          `json:"card_name"`
	LastFour    string          `json:"last_four"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Currency    string          `json:"currency"`
	BillingDay  int             `json:"billing_day"`
	DueDay      int             `json:"due_day"`
	IsActive    bool            `json:"is_active"`
	Note        string          `json:"note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"-"`
}

type CardList struct {
	Cards []Card `json:"cards"`
}
