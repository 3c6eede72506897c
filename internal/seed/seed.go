// Package seed populates a development database with an administrator and a
// few demo cards. Running it twice leaves the data unchanged.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"card-admin/internal/model"
	"card-admin/internal/service"
	"card-admin/pkg/apierror"
)

// AllowedEnv reports whether seeding may run in the given APP_ENV.
func AllowedEnv(appEnv string) bool {
	return appEnv == "dev" || appEnv == "test"
}

type Options struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

type Result struct {
	AdminID      string
	AdminCreated bool
	CardsCreated int
}

type Seeder struct {
	auth  *service.AuthService
	users service.UserStore
	cards *service.CardService
}

func New(auth *service.AuthService, users service.UserStore, cards *service.CardService) *Seeder {
	return &Seeder{auth: auth, users: users, cards: cards}
}

func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	var result Result

	admin, created, err := s.ensureAdmin(ctx, opts)
	if err != nil {
		return result, err
	}
	result.AdminID = admin.ID
	result.AdminCreated = created

	existing, err := s.cards.List(ctx, admin.ID)
	if err != nil {
		return result, fmt.Errorf("list admin cards: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("demo cards already present", "user_id", admin.ID, "count", len(existing))
		return result, nil
	}

	for _, req := range demoCards() {
		if _, err := s.cards.Create(ctx, admin.ID, req); err != nil {
			return result, fmt.Errorf("create demo card %q: %w", req.BankName, err)
		}
		result.CardsCreated++
	}

	return result, nil
}

func (s *Seeder) ensureAdmin(ctx context.Context, opts Options) (model.User, bool, error) {
	created := true
	_, err := s.auth.Register(ctx, model.RegisterRequest{
		Username: opts.AdminUsername,
		Email:    opts.AdminEmail,
		Password: opts.AdminPassword,
		Nickname: "Administrator",
	})

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusConflict {
		created = false
		err = nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("register admin: %w", err)
	}

	admin, err := s.users.FindByUsername(ctx, opts.AdminUsername)
	if err != nil {
		return model.User{}, false, fmt.Errorf("find admin: %w", err)
	}

	if !admin.IsAdmin || !admin.IsVerified || !admin.IsActive {
		admin.IsAdmin = true
		admin.IsVerified = true
		admin.IsActive = true
		if err := s.users.UpdateFlags(ctx, admin); err != nil {
			return model.User{}, false, fmt.Errorf("promote admin: %w", err)
		}
	}

	return admin, created, nil
}

func demoCards() []model.CardRequest {
	limit := func(v string) *decimal.Decimal {
		d := decimal.RequireFromString(v)
		return &d
	}

	return []model.CardRequest{
		{BankName: "Northwind Bank", CardName: "Everyday", LastFour: "4242", CreditLimit: limit("5000.00"), BillingDay: 5, DueDay: 25},
		{BankName: "Contoso Credit", CardName: "Travel", LastFour: "1881", CreditLimit: limit("12000.00"), Currency: "EUR", BillingDay: 12, DueDay: 2},
		{BankName: "Fabrikam", CardName: "Backup", LastFour: "0005", CreditLimit: limit("750.50"), BillingDay: 28, DueDay: 15, Note: "kept for emergencies"},
	}
}
