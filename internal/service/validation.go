package service

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"card-admin/pkg/apierror"
)

const (
	defaultLocale   = "en-US"
	defaultTimezone = "UTC"
	defaultCurrency = "USD"

	maxEmailLength    = 255
	maxNicknameLength = 100
	maxLocaleLength   = 20
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,50}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	localePattern   = regexp.MustCompile(`^[A-Za-z]{2,3}([_-][A-Za-z0-9]{2,8})*$`)
	lastFourPattern = regexp.MustCompile(`^[0-9]{4}$`)
)

func validateUsername(username string) error {
	if username == "" {
		return apierror.Validation("username is required", "username")
	}
	if !usernamePattern.MatchString(username) {
		return apierror.Validation("username must be 3-50 characters of letters, digits, '_', '.' or '-'", "username")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return apierror.Validation("email is required", "email")
	}
	if len(email) > maxEmailLength {
		return apierror.Validation("email is too long", "email")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return apierror.Validation("email is not a valid address", "email")
	}
	return nil
}

func validateNickname(nickname string) error {
	if len([]rune(nickname)) > maxNicknameLength {
		return apierror.Validation("nickname must be at most 100 characters", "nickname")
	}
	return nil
}

func validateLocale(locale string) error {
	if len(locale) > maxLocaleLength || !localePattern.MatchString(locale) {
		return apierror.Validation("locale must look like 'en-US'", "locale")
	}
	return nil
}

func validateTimezone(timezone string) error {
	if _, err := time.LoadLocation(timezone); err != nil || timezone == "" || timezone == "Local" {
		return apierror.Validation("timezone must be an IANA zone name", "timezone")
	}
	return nil
}

func validateCurrency(currency string, field string) error {
	if !currencyPattern.MatchString(currency) {
		return apierror.Validation("currency must be a 3-letter ISO 4217 code", field)
	}
	return nil
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// validID reports whether id can name a row; anything else is treated as
// not found.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func normalizePage(page int, limit int, defaultLimit int, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
