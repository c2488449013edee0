package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/kakao-auth/internal/auth"
	"github.com/spec-kit/kakao-auth/internal/config"
	"github.com/spec-kit/kakao-auth/internal/domain"
	"github.com/spec-kit/kakao-auth/internal/events"
	"github.com/spec-kit/kakao-auth/internal/repository"
	apperrors "github.com/spec-kit/kakao-auth/pkg/util/errorutil"
)

const birthLayout = "2006-01-02"

var (
	pinPattern   = regexp.MustCompile(`^[0-9]{4,6}$`)
	phonePattern = regexp.MustCompile(`^[0-9+][0-9-]{6,19}$`)
)

// SignupProfile is the account information collected by the signup forms.
// PIN is only required for customers.
type SignupProfile struct {
	Name        string
	Birth       string
	Gender      string
	PhoneNumber string
	Email       *string
	PIN         string
}

// AuthService coordinates login resolution, refresh rotation, logout and signup.
type AuthService struct {
	accounts   repository.AccountRepository
	tokens     *auth.TokenSigner
	refresh    *auth.RefreshSessionManager
	tickets    *auth.SignupTicketManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	ticketTTL  time.Duration
	bcryptCost int
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	Accounts   repository.AccountRepository
	Tokens     *auth.TokenSigner
	Refresh    *auth.RefreshSessionManager
	Tickets    *auth.SignupTicketManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts:   deps.Accounts,
		tokens:     deps.Tokens,
		refresh:    deps.Refresh,
		tickets:    deps.Tickets,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		ticketTTL:  cfg.Auth.SignupTicketTTL(),
		bcryptCost: cfg.Auth.BcryptCost,
		now:        time.Now,
	}
}

// CompleteLogin resolves a finished provider login. Known accounts get tokens;
// unknown identities get a signup ticket for role.
func (s *AuthService) CompleteLogin(ctx context.Context, identity domain.ProviderIdentity, role domain.Role) (*domain.LoginResult, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}
	if identity.ProviderType == "" || strings.TrimSpace(identity.ProviderID) == "" {
		return nil, apperrors.NewValidationError("provider identity required", nil)
	}

	account, err := s.accounts.FindByProvider(ctx, role, identity)
	switch {
	case err == nil:
		tokens, err := s.IssueForAccount(ctx, account.ID, role)
		if err != nil {
			return nil, err
		}
		return &domain.LoginResult{Status: domain.LoginStatusSuccess, Role: role, Tokens: tokens}, nil
	case errors.Is(err, repository.ErrAccountNotFound):
	default:
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	ticket, err := s.tickets.Issue(ctx, role, identity, s.ticketTTL)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventSignupTicketIssued, events.Subject{Role: role, ProviderType: identity.ProviderType}, nil)

	return &domain.LoginResult{
		Status:          domain.LoginStatusSignupRequired,
		Role:            role,
		Ticket:          ticket,
		TicketExpiresIn: s.ticketTTL,
	}, nil
}

// IssueForAccount hands out a fresh access token and a refresh session, replacing any
// session the account already had.
func (s *AuthService) IssueForAccount(ctx context.Context, userID int64, role domain.Role) (*domain.IssuedTokens, error) {
	access, expiresIn, err := s.tokens.Issue(strconv.FormatInt(userID, 10), role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	session, err := s.refresh.Issue(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventRefreshIssued, events.Subject{UserID: userID, Role: role},
		events.RefreshIssuedPayload{TTLSeconds: int64(session.TTL / time.Second)})

	return &domain.IssuedTokens{
		UserID:          userID,
		Role:            role,
		AccessToken:     access,
		AccessExpiresIn: expiresIn,
		RefreshToken:    session.Token,
		RefreshTTL:      session.TTL,
	}, nil
}

// Refresh rotates refreshToken and issues a new access token for its account.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.IssuedTokens, error) {
	if refreshToken == "" {
		return nil, apperrors.NewRefreshTokenMissing()
	}

	session, err := s.refresh.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshReplayed) {
			s.publish(ctx, events.EventRefreshReplayDetected, events.Subject{}, nil)
		}
		return nil, err
	}
	subject := events.Subject{UserID: session.Payload.UserID, Role: session.Payload.Role}
	s.publish(ctx, events.EventRefreshRotated, subject, nil)

	access, expiresIn, err := s.tokens.Issue(strconv.FormatInt(session.Payload.UserID, 10), session.Payload.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &domain.IssuedTokens{
		UserID:          session.Payload.UserID,
		Role:            session.Payload.Role,
		AccessToken:     access,
		AccessExpiresIn: expiresIn,
		RefreshToken:    session.Token,
		RefreshTTL:      session.TTL,
	}, nil
}

// Logout revokes the session behind refreshToken. It always succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	payload, revoked := s.refresh.Logout(ctx, refreshToken)
	if !revoked {
		return
	}
	s.publish(ctx, events.EventRefreshRevoked, events.Subject{UserID: payload.UserID, Role: payload.Role}, nil)
}

// Signup completes a deferred registration for the identity named by ticket.
// Resubmitting a ticket whose account was already created returns tokens for that
// account while the ticket is still live; the ticket is removed once the account
// transaction commits.
func (s *AuthService) Signup(ctx context.Context, role domain.Role, ticket string, profile SignupProfile) (*domain.IssuedTokens, error) {
	if strings.TrimSpace(ticket) == "" {
		return nil, apperrors.NewValidationError("ticket is required", map[string]any{"field": "ticket"})
	}
	account, err := s.buildAccount(role, profile)
	if err != nil {
		return nil, err
	}

	payload, err := s.tickets.Peek(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if payload.Role != role {
		return nil, auth.ErrRoleMismatch
	}
	account.ProviderType = payload.ProviderType
	account.ProviderID = payload.ProviderID

	if role == domain.RoleCustomer {
		hash, err := auth.HashPIN(profile.PIN, s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash pin: %w", err)
		}
		account.PINHash = hash
	}

	stored, created, err := s.accounts.Register(ctx, account, func(ctx context.Context) {
		if err := s.tickets.Invalidate(ctx, ticket); err != nil {
			// the ticket still expires on its own TTL
			s.logger.Warn("invalidate signup ticket after commit", zap.Error(err))
		}
	})
	if err != nil {
		if errors.Is(err, repository.ErrAccountConflict) {
			return nil, apperrors.NewConflict("provider identity already registered", nil)
		}
		return nil, fmt.Errorf("register account: %w", err)
	}

	s.publish(ctx, events.EventSignupCompleted, events.Subject{
		UserID:       stored.ID,
		Role:         role,
		ProviderType: stored.ProviderType,
	}, events.SignupCompletedPayload{Created: created})

	return s.IssueForAccount(ctx, stored.ID, role)
}

func (s *AuthService) buildAccount(role domain.Role, profile SignupProfile) (*domain.Account, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}

	problems := map[string]any{}
	name := strings.TrimSpace(profile.Name)
	if name == "" || len([]rune(name)) > 50 {
		problems["name"] = "required, at most 50 characters"
	}
	birth, err := time.Parse(birthLayout, profile.Birth)
	if err != nil || birth.After(s.now()) {
		problems["birth"] = "must be a past date formatted YYYY-MM-DD"
	}
	gender := domain.Gender(strings.ToUpper(profile.Gender))
	if gender != domain.GenderMale && gender != domain.GenderFemale {
		problems["gender"] = "must be MALE or FEMALE"
	}
	if !phonePattern.MatchString(profile.PhoneNumber) {
		problems["phoneNumber"] = "invalid phone number"
	}
	if role == domain.RoleCustomer && !pinPattern.MatchString(profile.PIN) {
		problems["pin"] = "must be 4 to 6 digits"
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid signup request", problems)
	}

	return &domain.Account{
		Role:        role,
		Email:       profile.Email,
		Name:        name,
		PhoneNumber: profile.PhoneNumber,
		Birth:       birth,
		Gender:      gender,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, subject events.Subject, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish session event", zap.String("type", string(eventType)), zap.Error(err))
	}
}
