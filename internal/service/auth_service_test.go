package service_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/kakao-auth/internal/auth"
	"github.com/spec-kit/kakao-auth/internal/config"
	"github.com/spec-kit/kakao-auth/internal/domain"
	"github.com/spec-kit/kakao-auth/internal/events"
	"github.com/spec-kit/kakao-auth/internal/observability"
	"github.com/spec-kit/kakao-auth/internal/persistence"
	"github.com/spec-kit/kakao-auth/internal/repository"
	"github.com/spec-kit/kakao-auth/internal/service"
	"github.com/spec-kit/kakao-auth/internal/worker"
	"github.com/spec-kit/kakao-auth/pkg/util/errorutil"
)

// fakeAccounts is an in-memory AccountRepository that runs onCommit like a committed transaction.
type fakeAccounts struct {
	mu          sync.Mutex
	nextID      int64
	accounts    map[string]*domain.Account
	registerErr error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{nextID: 100, accounts: make(map[string]*domain.Account)}
}

func accountKey(role domain.Role, identity domain.ProviderIdentity) string {
	return string(role) + "|" + string(identity.ProviderType) + "|" + identity.ProviderID
}

func (f *fakeAccounts) FindByProvider(_ context.Context, role domain.Role, identity domain.ProviderIdentity) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[accountKey(role, identity)]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (f *fakeAccounts) Register(ctx context.Context, account *domain.Account, onCommit func(context.Context)) (*domain.Account, bool, error) {
	f.mu.Lock()
	if f.registerErr != nil {
		f.mu.Unlock()
		return nil, false, f.registerErr
	}
	key := accountKey(account.Role, domain.ProviderIdentity{ProviderType: account.ProviderType, ProviderID: account.ProviderID})
	stored, exists := f.accounts[key]
	if !exists {
		f.nextID++
		copied := *account
		copied.ID = f.nextID
		stored = &copied
		f.accounts[key] = stored
	}
	result := *stored
	f.mu.Unlock()

	if onCommit != nil {
		onCommit(ctx)
	}
	return &result, !exists, nil
}

type fixture struct {
	svc      *service.AuthService
	accounts *fakeAccounts
	store    *persistence.MemorySessionStore
	tokens   *auth.TokenSigner
	tickets  *auth.SignupTicketManager
	metrics  *observability.Metrics
	bus      events.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Config{Auth: config.AuthConfig{
		SignupTicketTTLSeconds: 600,
		BcryptCost:             bcrypt.MinCost,
	}}

	tokens, err := auth.NewTokenSigner("0123456789abcdef0123456789abcdef", "kakao-auth", 30*time.Minute)
	require.NoError(t, err)

	store := persistence.NewMemorySessionStore()
	logger := zap.NewNop()
	tickets := auth.NewSignupTicketManager(store, logger)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	accounts := newFakeAccounts()
	svc := service.NewAuthService(cfg, service.AuthDependencies{
		Accounts:   accounts,
		Tokens:     tokens,
		Refresh:    auth.NewRefreshSessionManager(store, 14*24*time.Hour, logger),
		Tickets:    tickets,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	return &fixture{svc: svc, accounts: accounts, store: store, tokens: tokens, tickets: tickets, metrics: metrics, bus: dispatcher}
}

var kakao = domain.ProviderIdentity{ProviderType: domain.ProviderKakao, ProviderID: "3141592"}

func customerProfile() service.SignupProfile {
	return service.SignupProfile{
		Name:        "Kim Minji",
		Birth:       "1995-04-12",
		Gender:      "FEMALE",
		PhoneNumber: "010-1234-5678",
		PIN:         "482910",
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var de *errorutil.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	require.Equal(t, code, de.Code)
}

func TestCompleteLoginUnknownIdentityRequiresSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.CompleteLogin(ctx, kakao, domain.RoleCustomer)
	require.NoError(t, err)
	require.Equal(t, domain.LoginStatusSignupRequired, result.Status)
	require.Equal(t, domain.RoleCustomer, result.Role)
	require.Nil(t, result.Tokens)
	require.Equal(t, 10*time.Minute, result.TicketExpiresIn)

	payload, err := f.tickets.Peek(ctx, result.Ticket)
	require.NoError(t, err)
	require.Equal(t, kakao.ProviderID, payload.ProviderID)
	require.Equal(t, domain.RoleCustomer, payload.Role)

	require.Equal(t, int64(1), f.metrics.Snapshot().SessionEvents["signup_ticket_issued"])
}

func TestCompleteLoginRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CompleteLogin(ctx, kakao, domain.Role("ADMIN"))
	requireCode(t, err, errorutil.CodeValidationFailed)

	_, err = f.svc.CompleteLogin(ctx, domain.ProviderIdentity{ProviderType: domain.ProviderKakao}, domain.RoleOwner)
	requireCode(t, err, errorutil.CodeValidationFailed)
}

func TestSignupThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	login, err := f.svc.CompleteLogin(ctx, kakao, domain.RoleCustomer)
	require.NoError(t, err)

	issued, err := f.svc.Signup(ctx, domain.RoleCustomer, login.Ticket, customerProfile())
	require.NoError(t, err)
	require.Equal(t, domain.RoleCustomer, issued.Role)
	require.Equal(t, 30*time.Minute, issued.AccessExpiresIn)
	require.Equal(t, 14*24*time.Hour, issued.RefreshTTL)

	claims, err := f.tokens.Verify(issued.AccessToken)
	require.NoError(t, err)
	require.Equal(t, strconv.FormatInt(issued.UserID, 10), claims.Subject)

	account, err := f.accounts.FindByProvider(ctx, domain.RoleCustomer, kakao)
	require.NoError(t, err)
	require.Equal(t, "Kim Minji", account.Name)
	require.Equal(t, domain.GenderFemale, account.Gender)
	require.NoError(t, auth.ComparePIN(account.PINHash, "482910"))

	// ticket is gone once the account committed
	_, err = f.tickets.Peek(ctx, login.Ticket)
	require.ErrorIs(t, err, auth.ErrTicketInvalid)
	_, err = f.svc.Signup(ctx, domain.RoleCustomer, login.Ticket, customerProfile())
	require.ErrorIs(t, err, auth.ErrTicketInvalid)

	again, err := f.svc.CompleteLogin(ctx, kakao, domain.RoleCustomer)
	require.NoError(t, err)
	require.Equal(t, domain.LoginStatusSuccess, again.Status)
	require.Equal(t, issued.UserID, again.Tokens.UserID)

	// the login replaced the signup session
	_, err = f.svc.Refresh(ctx, issued.RefreshToken)
	require.ErrorIs(t, err, auth.ErrRefreshInvalid)

	snap := f.metrics.Snapshot().SessionEvents
	require.Equal(t, int64(1), snap["signup_completed"])
	require.Equal(t, int64(2), snap["refresh_issued"])
}

func TestOwnerSignupNeedsNoPIN(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	login, err := f.svc.CompleteLogin(ctx, kakao, domain.RoleOwner)
	require.NoError(t, err)

	profile := customerProfile()
	profile.PIN = ""
	issued, err := f.svc.Signup(ctx, domain.RoleOwner, login.Ticket, profile)
	require.NoError(t, err)
	require.Equal(t, domain.RoleOwner, issued.Role)

	account, err := f.accounts.FindByProvider(ctx, domain.RoleOwner, kakao)
	require.NoError(t, err)
	require.Empty(t, account.PINHash)
}

func TestSignupRoleMismatchKeepsTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	login, err := f.svc.CompleteLogin(ctx, kakao, domain.RoleOwner)
	require.NoError(t, err)

	_, err = f.svc.Signup(ctx, domain.RoleCustomer, login.Ticket, customerProfile())
	require.ErrorIs(t, err, auth.ErrRoleMismatch)

	_, err = f.tickets.Peek(ctx, login.Ticket)
	require.NoError(t, err)
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	login, err := f.svc.CompleteLogin(ctx, kakao, domain.RoleCustomer)
	require.NoError(t, err)

	_, err = f.svc.Signup(ctx, domain.RoleCustomer, "", customerProfile())
	requireCode(t, err, errorutil.CodeValidationFailed)

	bad := service.SignupProfile{Name: " ", Birth: "12/04/1995", Gender: "OTHER", PhoneNumber: "abc", PIN: "12"}
	_, err = f.svc.Signup(ctx, domain.RoleCustomer, login.Ticket, bad)
	requireCode(t, err, errorutil.CodeValidationFailed)

	var de *errorutil.DomainError
	require.True(t, errors.As(err, &de))
	for _, field := range []string{"name", "birth", "gender", "phoneNumber", "pin"} {
		require.Contains(t, de.Details, field)
	}

	future := customerProfile()
	future.Birth = time.Now().AddDate(1, 0, 0).Format("2006-01-02")
	_, err = f.svc.Signup(ctx, domain.RoleCustomer, login.Ticket, future)
	requireCode(t, err, errorutil.CodeValidationFailed)

	// validation failures never consume the ticket
	_, err = f.tickets.Peek(ctx, login.Ticket)
	require.NoError(t, err)
}

func TestSignupFailedRegistrationKeepsTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	login, err := f.svc.CompleteLogin(ctx, kakao, domain.RoleCustomer)
	require.NoError(t, err)

	f.accounts.registerErr = errors.New("tx aborted")
	_, err = f.svc.Signup(ctx, domain.RoleCustomer, login.Ticket, customerProfile())
	require.ErrorContains(t, err, "tx aborted")
	_, err = f.tickets.Peek(ctx, login.Ticket)
	require.NoError(t, err)

	f.accounts.registerErr = repository.ErrAccountConflict
	_, err = f.svc.Signup(ctx, domain.RoleCustomer, login.Ticket, customerProfile())
	requireCode(t, err, errorutil.CodeDuplicateValue)

	f.accounts.registerErr = nil
	_, err = f.svc.Signup(ctx, domain.RoleCustomer, login.Ticket, customerProfile())
	require.NoError(t, err)
}

func TestRefreshAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.svc.IssueForAccount(ctx, 77, domain.RoleOwner)
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(ctx, issued.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, issued.RefreshToken, rotated.RefreshToken)
	require.Equal(t, int64(77), rotated.UserID)
	require.Equal(t, domain.RoleOwner, rotated.Role)

	claims, err := f.tokens.Verify(rotated.AccessToken)
	require.NoError(t, err)
	role, err := f.tokens.ExtractRole(claims)
	require.NoError(t, err)
	require.Equal(t, domain.RoleOwner, role)

	_, err = f.svc.Refresh(ctx, issued.RefreshToken)
	require.ErrorIs(t, err, auth.ErrRefreshInvalid)

	_, err = f.svc.Refresh(ctx, "")
	requireCode(t, err, errorutil.CodeRefreshTokenMissing)

	f.svc.Logout(ctx, rotated.RefreshToken)
	f.svc.Logout(ctx, rotated.RefreshToken)
	f.svc.Logout(ctx, "")
	require.Equal(t, 0, f.store.Len())

	_, err = f.svc.Refresh(ctx, rotated.RefreshToken)
	require.ErrorIs(t, err, auth.ErrRefreshInvalid)

	snap := f.metrics.Snapshot().SessionEvents
	require.Equal(t, int64(1), snap["refresh_rotated"])
	require.Equal(t, int64(1), snap["refresh_revoked"])
}

func TestLogoutPublishesOnlyRealRevocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		subjects []events.Subject
	)
	f.bus.Subscribe(events.EventRefreshRevoked, func(_ context.Context, event events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		subjects = append(subjects, event.Subject)
		return nil
	})

	f.svc.Logout(ctx, "never-issued")
	issued, err := f.svc.IssueForAccount(ctx, 31, domain.RoleCustomer)
	require.NoError(t, err)
	f.svc.Logout(ctx, issued.RefreshToken)
	f.svc.Logout(ctx, issued.RefreshToken)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []events.Subject{{UserID: 31, Role: domain.RoleCustomer}}, subjects)
	require.Equal(t, int64(1), f.metrics.Snapshot().SessionEvents["refresh_revoked"])
}
