package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenExpired reports an access token whose signature and issuer are valid but whose exp has passed.
	ErrTokenExpired = errors.New("auth: access token expired")
	// ErrTokenInvalid reports a malformed, tampered, foreign-issuer or unknown-role access token.
	ErrTokenInvalid = errors.New("auth: access token invalid")
	// ErrAuthentication covers unexpected failures while authenticating a request.
	ErrAuthentication = errors.New("auth: authentication failed")
	// ErrRefreshInvalid reports an unknown or expired refresh token.
	ErrRefreshInvalid = errors.New("auth: refresh token invalid")
	// ErrRefreshReplayed reports a refresh token that is no longer the account's active session.
	ErrRefreshReplayed = fmt.Errorf("%w: not the active session", ErrRefreshInvalid)
	// ErrTicketInvalid reports an unknown, expired or already used signup ticket.
	ErrTicketInvalid = errors.New("auth: signup ticket invalid")
	// ErrRoleMismatch reports a signup attempted for a role other than the ticket's.
	ErrRoleMismatch = errors.New("auth: signup role mismatch")
	// ErrMissingSecret reports a TokenSigner constructed without a signing secret.
	ErrMissingSecret = errors.New("auth: signing secret not configured")
)
