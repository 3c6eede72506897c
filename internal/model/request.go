package model

import "github.com/shopspring/decimal"

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Locale   string `json:"locale"`
	Timezone string `json:"timezone"`
	Currency string `json:"currency"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UpdateProfileRequest struct {
	Nickname *string `json:"nickname"`
	Locale   *string `json:"locale"`
	Timezone *string `json:"timezone"`
	Currency *string `json:"currency"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type UpdateFlagsRequest struct {
	IsActive   *bool `json:"is_active"`
	IsVerified *bool `json:"is_verified"`
	IsAdmin    *bool `json:"is_admin"`
}

type CardRequest struct {
	BankName    string           `json:"bank_name"`
	CardName    string           `json:"card_name"`
	LastFour    string           `json:"last_four"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
	Currency    string           `json:"currency"`
	BillingDay  int              `json:"billing_day"`
	DueDay      int              `json:"due_day"`
	IsActive    *bool            `json:"is_active"`
	Note        string           `json:"note"`
}
