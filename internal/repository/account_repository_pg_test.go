package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/spec-kit/kakao-auth/internal/config"
	"github.com/spec-kit/kakao-auth/internal/domain"
	"github.com/spec-kit/kakao-auth/internal/persistence"
	"github.com/spec-kit/kakao-auth/internal/repository"
)

// setupPostgres starts a throwaway Postgres container with the account schema applied.
func setupPostgres(t *testing.T) *persistence.Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "auth",
			"POSTGRES_PASSWORD": "auth",
			"POSTGRES_DB":       "auth",
		},
		// postgres restarts once after initdb, so the line shows up twice
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://auth:auth@%s:%s/auth?sslmode=disable", host, port.Port())
	pg, err := persistence.NewPostgres(ctx, config.PostgresConfig{DSN: dsn}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	require.NoError(t, persistence.RunMigrations(ctx, pg, zap.NewNop()))
	return pg
}

func newCustomer(providerID string) *domain.Account {
	email := "minji@example.com"
	return &domain.Account{
		Role:         domain.RoleCustomer,
		ProviderType: domain.ProviderKakao,
		ProviderID:   providerID,
		Email:        &email,
		Name:         "Kim Minji",
		PhoneNumber:  "010-1234-5678",
		Birth:        time.Date(1995, 4, 12, 0, 0, 0, 0, time.UTC),
		Gender:       domain.GenderFemale,
		PINHash:      "$2a$04$hash",
	}
}

func TestPostgresAccountRepository(t *testing.T) {
	pg := setupPostgres(t)
	repo := repository.NewAccountRepository(pg)
	ctx := context.Background()

	t.Run("register then find", func(t *testing.T) {
		commits := 0
		account, created, err := repo.Register(ctx, newCustomer("100"), func(context.Context) { commits++ })
		require.NoError(t, err)
		require.True(t, created)
		require.NotZero(t, account.ID)
		require.Equal(t, 1, commits)

		found, err := repo.FindByProvider(ctx, domain.RoleCustomer, domain.ProviderIdentity{ProviderType: domain.ProviderKakao, ProviderID: "100"})
		require.NoError(t, err)
		require.Equal(t, account.ID, found.ID)
		require.Equal(t, "$2a$04$hash", found.PINHash)
		require.Equal(t, domain.GenderFemale, found.Gender)
		require.Equal(t, "1995-04-12", found.Birth.Format("2006-01-02"))
		require.Equal(t, "minji@example.com", *found.Email)

		_, err = repo.FindByProvider(ctx, domain.RoleOwner, domain.ProviderIdentity{ProviderType: domain.ProviderKakao, ProviderID: "100"})
		require.ErrorIs(t, err, repository.ErrAccountNotFound)

		again, created, err := repo.Register(ctx, newCustomer("100"), func(context.Context) { commits++ })
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, account.ID, again.ID)
		require.Equal(t, 2, commits)
	})

	t.Run("owner rows carry no pin", func(t *testing.T) {
		owner := newCustomer("200")
		owner.Role = domain.RoleOwner
		owner.PINHash = ""

		account, created, err := repo.Register(ctx, owner, nil)
		require.NoError(t, err)
		require.True(t, created)

		found, err := repo.FindByProvider(ctx, domain.RoleOwner, domain.ProviderIdentity{ProviderType: domain.ProviderKakao, ProviderID: "200"})
		require.NoError(t, err)
		require.Equal(t, account.ID, found.ID)
		require.Empty(t, found.PINHash)
	})

	t.Run("insert racing a concurrent signup converges", func(t *testing.T) {
		pool := pg.PoolHandle()
		rival, err := pool.Begin(ctx)
		require.NoError(t, err)
		_, err = rival.Exec(ctx, `
            INSERT INTO customers (provider_type, provider_id, phone_number, birth, name, gender, pin_hash)
            VALUES ('KAKAO', '300', '010-0000-0000', '1990-01-01', 'Rival', 'MALE', 'x')`)
		require.NoError(t, err)

		type outcome struct {
			account *domain.Account
			created bool
			err     error
		}
		done := make(chan outcome, 1)
		committed := false
		go func() {
			account, created, err := repo.Register(ctx, newCustomer("300"), func(context.Context) { committed = true })
			done <- outcome{account, created, err}
		}()

		// wait until Register blocks on the rival's uncommitted unique key
		require.Eventually(t, func() bool {
			var waiting int
			err := pool.QueryRow(ctx, `SELECT count(*) FROM pg_locks WHERE NOT granted`).Scan(&waiting)
			return err == nil && waiting > 0
		}, 10*time.Second, 20*time.Millisecond)
		require.NoError(t, rival.Commit(ctx))

		res := <-done
		require.NoError(t, res.err)
		require.False(t, res.created)
		require.Equal(t, "Rival", res.account.Name)
		require.True(t, committed)
	})

	t.Run("identity held by a removed account conflicts", func(t *testing.T) {
		_, err := pg.PoolHandle().Exec(ctx, `
            INSERT INTO customers (provider_type, provider_id, phone_number, birth, name, gender, pin_hash, deleted_at)
            VALUES ('KAKAO', '400', '010-0000-0000', '1990-01-01', 'Gone', 'MALE', 'x', NOW())`)
		require.NoError(t, err)

		called := false
		_, _, err = repo.Register(ctx, newCustomer("400"), func(context.Context) { called = true })
		require.ErrorIs(t, err, repository.ErrAccountConflict)
		require.False(t, called)

		_, err = repo.FindByProvider(ctx, domain.RoleCustomer, domain.ProviderIdentity{ProviderType: domain.ProviderKakao, ProviderID: "400"})
		require.ErrorIs(t, err, repository.ErrAccountNotFound)
	})
}
