package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/kakao-auth/internal/domain"
	"github.com/spec-kit/kakao-auth/internal/persistence"
)

const signupTicketPrefix = "signup:ticket:"

// SignupTicketManager issues one-time tickets that bridge a provider login with no local account to signup.
type SignupTicketManager struct {
	store  persistence.SessionStore
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewSignupTicketManager constructs a ticket manager.
func NewSignupTicketManager(store persistence.SessionStore, logger *zap.Logger) *SignupTicketManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignupTicketManager{store: store, logger: logger, now: time.Now, newID: uuid.NewString}
}

func ticketKey(ticket string) string {
	return signupTicketPrefix + ticket
}

// Issue creates a ticket for identity wanting to sign up as role.
func (m *SignupTicketManager) Issue(ctx context.Context, role domain.Role, identity domain.ProviderIdentity, ttl time.Duration) (string, error) {
	return m.Create(ctx, domain.SignupTicketPayload{
		ProviderType: identity.ProviderType,
		ProviderID:   identity.ProviderID,
		Role:         role,
		IssuedAt:     m.now().Unix(),
	}, ttl)
}

// Create stores payload under a fresh ticket id that expires after ttl.
func (m *SignupTicketManager) Create(ctx context.Context, payload domain.SignupTicketPayload, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("signup ticket ttl must be positive, got %s", ttl)
	}
	record, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode signup ticket: %w", err)
	}

	ticket := m.newID()
	if err := m.store.Set(ctx, ticketKey(ticket), string(record), ttl); err != nil {
		return "", fmt.Errorf("store signup ticket: %w", err)
	}
	m.logger.Debug("signup ticket issued", zap.String("role", string(payload.Role)), zap.Duration("ttl", ttl))
	return ticket, nil
}

// Peek reads a ticket without consuming it.
func (m *SignupTicketManager) Peek(ctx context.Context, ticket string) (domain.SignupTicketPayload, error) {
	if ticket == "" {
		return domain.SignupTicketPayload{}, ErrTicketInvalid
	}
	raw, found, err := m.store.Get(ctx, ticketKey(ticket))
	if err != nil {
		return domain.SignupTicketPayload{}, fmt.Errorf("load signup ticket: %w", err)
	}
	if !found {
		return domain.SignupTicketPayload{}, ErrTicketInvalid
	}
	return decodeTicket(raw)
}

// Consume reads and deletes a ticket in one atomic step; only one caller can ever get its payload.
func (m *SignupTicketManager) Consume(ctx context.Context, ticket string) (domain.SignupTicketPayload, error) {
	if ticket == "" {
		return domain.SignupTicketPayload{}, ErrTicketInvalid
	}
	raw, found, err := m.store.GetDelete(context.WithoutCancel(ctx), ticketKey(ticket))
	if err != nil {
		return domain.SignupTicketPayload{}, fmt.Errorf("consume signup ticket: %w", err)
	}
	if !found {
		return domain.SignupTicketPayload{}, ErrTicketInvalid
	}
	return decodeTicket(raw)
}

// Invalidate deletes a ticket. Deleting a missing ticket succeeds.
func (m *SignupTicketManager) Invalidate(ctx context.Context, ticket string) error {
	if ticket == "" {
		return nil
	}
	if err := m.store.Delete(context.WithoutCancel(ctx), ticketKey(ticket)); err != nil {
		return fmt.Errorf("invalidate signup ticket: %w", err)
	}
	m.logger.Debug("signup ticket invalidated")
	return nil
}

func decodeTicket(raw string) (domain.SignupTicketPayload, error) {
	var payload domain.SignupTicketPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.SignupTicketPayload{}, fmt.Errorf("%w: corrupt payload", ErrTicketInvalid)
	}
	if _, err := domain.ParseRole(string(payload.Role)); err != nil {
		return domain.SignupTicketPayload{}, fmt.Errorf("%w: %v", ErrTicketInvalid, err)
	}
	return payload, nil
}
