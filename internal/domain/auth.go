package domain

import "time"

// TokenTypeBearer is the scheme access tokens are presented with.
const TokenTypeBearer = "Bearer"

// IssuedTokens is the credential pair handed out after login, refresh or signup.
type IssuedTokens struct {
	UserID          int64
	Role            Role
	AccessToken     string
	AccessExpiresIn time.Duration
	RefreshToken    string
	RefreshTTL      time.Duration
}

// LoginStatus distinguishes the two outcomes of a provider login.
type LoginStatus string

const (
	LoginStatusSuccess        LoginStatus = "SUCCESS"
	LoginStatusSignupRequired LoginStatus = "SIGNUP_REQUIRED"
)

// LoginResult is either issued tokens for a known account or a signup ticket.
type LoginResult struct {
	Status          LoginStatus
	Role            Role
	Tokens          *IssuedTokens
	Ticket          string
	TicketExpiresIn time.Duration
}
