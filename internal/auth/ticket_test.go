package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/kakao-auth/internal/auth"
	"github.com/spec-kit/kakao-auth/internal/domain"
	"github.com/spec-kit/kakao-auth/internal/persistence"
)

var kakaoIdentity = domain.ProviderIdentity{ProviderType: domain.ProviderKakao, ProviderID: "kakao-1001"}

func TestTicketConsumeOnce(t *testing.T) {
	ctx := context.Background()
	m := auth.NewSignupTicketManager(persistence.NewMemorySessionStore(), zap.NewNop())

	payload := domain.SignupTicketPayload{
		ProviderType: domain.ProviderKakao,
		ProviderID:   "kakao-1001",
		Role:         domain.RoleCustomer,
		IssuedAt:     1_700_000_000,
	}
	ticket, err := m.Create(ctx, payload, 10*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, ticket)

	got, err := m.Consume(ctx, ticket)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	_, err = m.Consume(ctx, ticket)
	require.ErrorIs(t, err, auth.ErrTicketInvalid)
}

func TestTicketConcurrentConsumeSingleWinner(t *testing.T) {
	ctx := context.Background()
	m := auth.NewSignupTicketManager(persistence.NewMemorySessionStore(), zap.NewNop())
	ticket, err := m.Issue(ctx, domain.RoleOwner, kakaoIdentity, time.Minute)
	require.NoError(t, err)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Consume(ctx, ticket); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestTicketPeekDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	m := auth.NewSignupTicketManager(persistence.NewMemorySessionStore(), zap.NewNop())

	ticket, err := m.Issue(ctx, domain.RoleOwner, kakaoIdentity, time.Minute)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		payload, err := m.Peek(ctx, ticket)
		require.NoError(t, err)
		require.Equal(t, domain.RoleOwner, payload.Role)
		require.Equal(t, kakaoIdentity.ProviderID, payload.ProviderID)
		require.Equal(t, domain.ProviderKakao, payload.ProviderType)
		require.NotZero(t, payload.IssuedAt)
	}

	require.NoError(t, m.Invalidate(ctx, ticket))
	require.NoError(t, m.Invalidate(ctx, ticket))

	_, err = m.Peek(ctx, ticket)
	require.ErrorIs(t, err, auth.ErrTicketInvalid)
}

func TestTicketExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := persistence.NewMemorySessionStoreWithClock(func() time.Time { return now })
	m := auth.NewSignupTicketManager(store, zap.NewNop())
	ctx := context.Background()

	ticket, err := m.Issue(ctx, domain.RoleCustomer, kakaoIdentity, 10*time.Minute)
	require.NoError(t, err)

	now = now.Add(10*time.Minute + time.Second)
	_, err = m.Peek(ctx, ticket)
	require.ErrorIs(t, err, auth.ErrTicketInvalid)
}

func TestTicketRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemorySessionStore()
	m := auth.NewSignupTicketManager(store, zap.NewNop())

	_, err := m.Issue(ctx, domain.RoleCustomer, kakaoIdentity, 0)
	require.Error(t, err)

	_, err = m.Peek(ctx, "")
	require.ErrorIs(t, err, auth.ErrTicketInvalid)
	_, err = m.Consume(ctx, "")
	require.ErrorIs(t, err, auth.ErrTicketInvalid)

	require.NoError(t, store.Set(ctx, "signup:ticket:corrupt", "[]", time.Minute))
	_, err = m.Peek(ctx, "corrupt")
	require.ErrorIs(t, err, auth.ErrTicketInvalid)

	require.NoError(t, store.Set(ctx, "signup:ticket:admin", `{"providerType":"KAKAO","providerId":"x","role":"ADMIN","issuedAt":1}`, time.Minute))
	_, err = m.Peek(ctx, "admin")
	require.ErrorIs(t, err, auth.ErrTicketInvalid)
}

func TestTicketPropagatesStoreFailures(t *testing.T) {
	ctx := context.Background()
	m := auth.NewSignupTicketManager(failingStore{}, zap.NewNop())

	_, err := m.Issue(ctx, domain.RoleCustomer, kakaoIdentity, time.Minute)
	require.ErrorIs(t, err, persistence.ErrStoreUnavailable)
	_, err = m.Peek(ctx, "t")
	require.ErrorIs(t, err, persistence.ErrStoreUnavailable)
	_, err = m.Consume(ctx, "t")
	require.ErrorIs(t, err, persistence.ErrStoreUnavailable)
	require.ErrorIs(t, m.Invalidate(ctx, "t"), persistence.ErrStoreUnavailable)
}
