package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"card-admin/internal/model"
	"card-admin/internal/util"
	"card-admin/pkg/apierror"
)

const (
	AuditCardCreate = "card.create"
	AuditCardUpdate = "card.update"
	AuditCardDelete = "card.delete"

	maxBankNameLength = 100
	maxCardNameLength = 100
	maxNoteLength     = 500
)

// NUMERIC(14,2) leaves twelve integer digits.
var maxCreditLimit = decimal.New(1, 12)

type CardService struct {
	cards CardStore
	users UserStore
	audit *AuditService
	now   func() time.Time
}

func NewCardService(cards CardStore, users UserStore, audit *AuditService) *CardService {
	return &CardService{cards: cards, users: users, audit: audit, now: time.Now}
}

func (s *CardService) List(ctx context.Context, userID string) ([]model.Card, error) {
	return s.cards.ListByUser(ctx, userID)
}

func (s *CardService) Get(ctx context.Context, userID string, cardID string) (model.Card, error) {
	if !validID(cardID) {
		return model.Card{}, apierror.NotFound("card not found", cardID)
	}

	card, err := s.cards.FindByID(ctx, userID, cardID)
	if err != nil {
		return model.Card{}, cardNotFound(err, cardID)
	}
	return card, nil
}

func (s *CardService) Create(ctx context.Context, userID string, req model.CardRequest) (model.Card, error) {
	owner, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.Card{}, apierror.Unauthorized("authentication required")
	}
	if err != nil {
		return model.Card{}, err
	}

	now := s.now().UTC()
	card := model.Card{
		ID:        uuid.NewString(),
		UserID:    userID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyCardRequest(&card, req, owner.Currency); err != nil {
		return model.Card{}, err
	}

	if err := s.cards.Create(ctx, card); err != nil {
		return model.Card{}, err
	}

	s.audit.Log(ctx, AuditCardCreate, AuditSuccess, "card:"+card.ID, nil, card, "")
	return card, nil
}

// Update replaces every mutable field of the card.
func (s *CardService) Update(ctx context.Context, userID string, cardID string, req model.CardRequest) (model.Card, error) {
	existing, err := s.Get(ctx, userID, cardID)
	if err != nil {
		return model.Card{}, err
	}

	card := existing
	card.IsActive = true
	if err := applyCardRequest(&card, req, existing.Currency); err != nil {
		return model.Card{}, err
	}
	card.UpdatedAt = s.now().UTC()

	if err := s.cards.Update(ctx, card); err != nil {
		return model.Card{}, cardNotFound(err, cardID)
	}

	s.audit.Log(ctx, AuditCardUpdate, AuditSuccess, "card:"+card.ID, existing, card, "")
	return card, nil
}

func (s *CardService) Delete(ctx context.Context, userID string, cardID string) error {
	existing, err := s.Get(ctx, userID, cardID)
	if err != nil {
		return err
	}

	if err := s.cards.SoftDelete(ctx, userID, cardID, s.now().UTC()); err != nil {
		return cardNotFound(err, cardID)
	}

	s.audit.Log(ctx, AuditCardDelete, AuditSuccess, "card:"+cardID, existing, nil, "")
	return nil
}

func applyCardRequest(card *model.Card, req model.CardRequest, fallbackCurrency string) error {
	card.BankName = util.CleanText(req.BankName, false)
	card.CardName = util.CleanText(req.CardName, false)
	card.LastFour = strings.TrimSpace(req.LastFour)
	card.Currency = normalizeCurrency(req.Currency)
	card.BillingDay = req.BillingDay
	card.DueDay = req.DueDay
	card.Note = util.CleanText(req.Note, true)
	if card.Currency == "" {
		card.Currency = fallbackCurrency
	}
	if req.IsActive != nil {
		card.IsActive = *req.IsActive
	}

	switch {
	case card.BankName == "":
		return apierror.Validation("bank_name is required", "bank_name")
	case len([]rune(card.BankName)) > maxBankNameLength:
		return apierror.Validation("bank_name must be at most 100 characters", "bank_name")
	case len([]rune(card.CardName)) > maxCardNameLength:
		return apierror.Validation("card_name must be at most 100 characters", "card_name")
	case !lastFourPattern.MatchString(card.LastFour):
		return apierror.Validation("last_four must be exactly 4 digits", "last_four")
	case req.CreditLimit == nil:
		return apierror.Validation("credit_limit is required", "credit_limit")
	case req.CreditLimit.IsNegative():
		return apierror.Validation("credit_limit must not be negative", "credit_limit")
	case !req.CreditLimit.Equal(req.CreditLimit.Round(2)):
		return apierror.Validation("credit_limit must have at most 2 decimal places", "credit_limit")
	case req.CreditLimit.GreaterThanOrEqual(maxCreditLimit):
		return apierror.Validation("credit_limit is too large", "credit_limit")
	case card.BillingDay < 1 || card.BillingDay > 31:
		return apierror.Validation("billing_day must be between 1 and 31", "billing_day")
	case card.DueDay < 1 || card.DueDay > 31:
		return apierror.Validation("due_day must be between 1 and 31", "due_day")
	case len([]rune(card.Note)) > maxNoteLength:
		return apierror.Validation("note must be at most 500 characters", "note")
	}

	if err := validateCurrency(card.Currency, "currency"); err != nil {
		return err
	}

	card.CreditLimit = req.CreditLimit.Round(2)
	return nil
}

func cardNotFound(err error, cardID string) error {
	if errors.Is(err, model.ErrCardNotFound) {
		return apierror.NotFound("card not found", cardID)
	}
	return err
}
