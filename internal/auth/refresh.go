package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/kakao-auth/internal/domain"
	"github.com/spec-kit/kakao-auth/internal/persistence"
)

const (
	refreshTokenPrefix  = "refresh:token:"
	refreshActivePrefix = "refresh:active:"
)

// RefreshSession is a live refresh token together with what it authenticates.
type RefreshSession struct {
	Token   string
	TTL     time.Duration
	Payload domain.RefreshPayload
}

// RefreshSessionManager keeps at most one live refresh token per (role, userId).
//
// Two records back every session: refresh:token:<token> holds the payload and
// refresh:active:<role>:<userId> names the only token allowed to verify. A token
// record that is not named by its active pointer is stale and is removed on sight.
type RefreshSessionManager struct {
	store    persistence.SessionStore
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
	newToken func() string
}

// NewRefreshSessionManager constructs a manager issuing sessions that live for ttl.
func NewRefreshSessionManager(store persistence.SessionStore, ttl time.Duration, logger *zap.Logger) *RefreshSessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshSessionManager{
		store:    store,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

// TTL returns the refresh session lifetime.
func (m *RefreshSessionManager) TTL() time.Duration {
	return m.ttl
}

func tokenKey(token string) string {
	return refreshTokenPrefix + token
}

func activeKey(role domain.Role, userID int64) string {
	return refreshActivePrefix + string(role) + ":" + strconv.FormatInt(userID, 10)
}

// Issue starts a new session for the account and revokes whichever session was active before.
func (m *RefreshSessionManager) Issue(ctx context.Context, userID int64, role domain.Role) (RefreshSession, error) {
	ctx = context.WithoutCancel(ctx)

	payload := domain.RefreshPayload{UserID: userID, Role: role, IssuedAt: m.now().Unix()}
	token, err := m.writeToken(ctx, payload)
	if err != nil {
		return RefreshSession{}, err
	}

	previous, found, err := m.store.Swap(ctx, activeKey(role, userID), token, m.ttl)
	if err != nil {
		m.discard(ctx, token)
		return RefreshSession{}, fmt.Errorf("activate refresh token: %w", err)
	}
	if found && previous != token {
		if err := m.store.Delete(ctx, tokenKey(previous)); err != nil {
			// the previous record can no longer verify; it only lingers until its TTL
			m.logger.Warn("revoke previous refresh token", zap.Error(err))
		}
	}

	m.logger.Debug("refresh session issued",
		zap.Int64("user_id", userID), zap.String("role", string(role)), zap.Bool("replaced", found))
	return RefreshSession{Token: token, TTL: m.ttl, Payload: payload}, nil
}

// Verify returns the payload of token when it is the account's active session.
// Unknown tokens yield ErrRefreshInvalid; stale ones are deleted and yield ErrRefreshReplayed.
func (m *RefreshSessionManager) Verify(ctx context.Context, token string) (domain.RefreshPayload, error) {
	if token == "" {
		return domain.RefreshPayload{}, ErrRefreshInvalid
	}

	raw, found, err := m.store.Get(ctx, tokenKey(token))
	if err != nil {
		return domain.RefreshPayload{}, fmt.Errorf("load refresh token: %w", err)
	}
	if !found {
		return domain.RefreshPayload{}, ErrRefreshInvalid
	}

	var payload domain.RefreshPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || !validRole(payload.Role) {
		m.discard(context.WithoutCancel(ctx), token)
		return domain.RefreshPayload{}, fmt.Errorf("%w: corrupt payload", ErrRefreshInvalid)
	}

	active, found, err := m.store.Get(ctx, activeKey(payload.Role, payload.UserID))
	if err != nil {
		return domain.RefreshPayload{}, fmt.Errorf("load active refresh pointer: %w", err)
	}
	if !found || active != token {
		m.logger.Warn("stale refresh token presented",
			zap.Int64("user_id", payload.UserID), zap.String("role", string(payload.Role)))
		m.discard(context.WithoutCancel(ctx), token)
		return domain.RefreshPayload{}, ErrRefreshReplayed
	}

	return payload, nil
}

// Rotate replaces token with a successor. The predecessor stops verifying immediately.
//
// The active pointer moves by compare-and-swap, so of two concurrent rotations of the
// same token exactly one succeeds; the loser gets ErrRefreshReplayed and leaves no
// orphaned successor behind.
func (m *RefreshSessionManager) Rotate(ctx context.Context, token string) (RefreshSession, error) {
	payload, err := m.Verify(ctx, token)
	if err != nil {
		return RefreshSession{}, err
	}
	ctx = context.WithoutCancel(ctx)

	next := domain.RefreshPayload{UserID: payload.UserID, Role: payload.Role, IssuedAt: m.now().Unix()}
	successor, err := m.writeToken(ctx, next)
	if err != nil {
		return RefreshSession{}, err
	}

	swapped, err := m.store.CompareAndSwap(ctx, activeKey(payload.Role, payload.UserID), token, successor, m.ttl)
	if err != nil {
		m.discard(ctx, successor)
		return RefreshSession{}, fmt.Errorf("swap active refresh pointer: %w", err)
	}
	if !swapped {
		m.logger.Warn("concurrent refresh rotation lost",
			zap.Int64("user_id", payload.UserID), zap.String("role", string(payload.Role)))
		m.discard(ctx, successor, token)
		return RefreshSession{}, ErrRefreshReplayed
	}

	if err := m.store.Delete(ctx, tokenKey(token)); err != nil {
		// the pointer already moved, so the old record cannot verify again
		m.logger.Warn("delete rotated refresh token", zap.Error(err))
	}

	m.logger.Debug("refresh session rotated",
		zap.Int64("user_id", payload.UserID), zap.String("role", string(payload.Role)))
	return RefreshSession{Token: successor, TTL: m.ttl, Payload: next}, nil
}

// Logout revokes the session named by token and reports the payload it revoked.
// It never fails: unknown, stale and already revoked tokens are all accepted and
// report false, and store errors are only logged. A stale token cannot revoke the
// account's newer session.
//
// Once token has verified, the token record is deleted before the active pointer,
// so no rotation of token can land afterwards. A rotation that moved the pointer
// in between is revoked together with it.
func (m *RefreshSessionManager) Logout(ctx context.Context, token string) (domain.RefreshPayload, bool) {
	if token == "" {
		return domain.RefreshPayload{}, false
	}
	ctx = context.WithoutCancel(ctx)

	payload, verifyErr := m.Verify(ctx, token)
	if verifyErr != nil && errors.Is(verifyErr, persistence.ErrStoreUnavailable) {
		m.logger.Warn("logout lookup failed", zap.Error(verifyErr))
	}

	if err := m.store.Delete(ctx, tokenKey(token)); err != nil {
		m.logger.Warn("logout delete refresh token", zap.Error(err))
	}
	if verifyErr != nil {
		return domain.RefreshPayload{}, false
	}

	active, found, err := m.store.GetDelete(ctx, activeKey(payload.Role, payload.UserID))
	if err != nil {
		m.logger.Warn("logout delete active pointer", zap.Error(err))
		return payload, true
	}
	if found && active != token {
		m.logger.Warn("refresh session moved during logout",
			zap.Int64("user_id", payload.UserID), zap.String("role", string(payload.Role)))
		m.discard(ctx, active)
	}

	m.logger.Debug("refresh session revoked",
		zap.Int64("user_id", payload.UserID), zap.String("role", string(payload.Role)))
	return payload, true
}

func (m *RefreshSessionManager) writeToken(ctx context.Context, payload domain.RefreshPayload) (string, error) {
	record, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode refresh payload: %w", err)
	}
	token := m.newToken()
	if err := m.store.Set(ctx, tokenKey(token), string(record), m.ttl); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// discard deletes token records on a best-effort basis.
func (m *RefreshSessionManager) discard(ctx context.Context, tokens ...string) {
	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = tokenKey(t)
	}
	if err := m.store.Delete(ctx, keys...); err != nil {
		m.logger.Warn("discard refresh token", zap.Error(err))
	}
}

func validRole(r domain.Role) bool {
	_, err := domain.ParseRole(string(r))
	return err == nil
}
