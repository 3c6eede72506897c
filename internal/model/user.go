package model

import "time"

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Nickname     string     `json:"nickname"`
	Locale       string     `json:"locale"`
	Timezone     string     `json:"timezone"`
	Currency     string     `json:"currency"`
	IsActive     bool       `json:"is_active"`
	IsVerified   bool       `json:"is_verified"`
	IsAdmin      bool       `json:"is_admin"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"-"`
}

// Profile is the client-facing view of a user. It never carries the hash.
type Profile struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Nickname    string     `json:"nickname"`
	Locale      string     `json:"locale"`
	Timezone    string     `json:"timezone"`
	Currency    string     `json:"currency"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	IsAdmin     bool       `json:"is_admin"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Nickname:    u.Nickname,
		Locale:      u.Locale,
		Timezone:    u.Timezone,
		Currency:    u.Currency,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		IsAdmin:     u.IsAdmin,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// CanAuthenticate reports whether the account may log in or refresh tokens.
func (u User) CanAuthenticate() bool {
	return u.IsActive && u.DeletedAt == nil
}

type AuthClaims struct {
	UserID   string `json:"sub"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"adm"`
	Type     string `json:"typ"`
	TokenID  string `json:"jti"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RegisteredUser is the registration payload: the new profile plus its tokens.
type RegisteredUser struct {
	Profile
	TokenPair
}

// LoginResult mirrors RegisteredUser for the login endpoint.
type LoginResult struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	TokenPair
}

type UserQuery struct {
	Search string
	Page   int
	Limit  int
}

type UserList struct {
	Users []Profile `json:"users"`
}
