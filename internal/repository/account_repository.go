package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/kakao-auth/internal/domain"
	"github.com/spec-kit/kakao-auth/internal/persistence"
)

var (
	// ErrAccountNotFound is returned when no live account matches a provider identity.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountConflict is returned when the provider identity is held by a removed account.
	ErrAccountConflict = errors.New("provider identity already registered")
)

// AccountRepository defines persistence access for customer and owner accounts.
type AccountRepository interface {
	FindByProvider(ctx context.Context, role domain.Role, identity domain.ProviderIdentity) (*domain.Account, error)
	// Register creates the account unless one already exists for its provider identity, in which
	// case the existing one is returned with created=false. onCommit runs only after the commit.
	Register(ctx context.Context, account *domain.Account, onCommit func(context.Context)) (*domain.Account, bool, error)
}

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type accountTable struct {
	name     string
	idColumn string
	hasPIN   bool
}

var accountTables = map[domain.Role]accountTable{
	domain.RoleCustomer: {name: "customers", idColumn: "customer_id", hasPIN: true},
	domain.RoleOwner:    {name: "owners", idColumn: "owner_id"},
}

func tableFor(role domain.Role) (accountTable, error) {
	t, ok := accountTables[role]
	if !ok {
		return accountTable{}, fmt.Errorf("no account table for role %q", role)
	}
	return t, nil
}

func (t accountTable) pinColumn() string {
	if t.hasPIN {
		return "pin_hash"
	}
	return "''"
}

func (t accountTable) selectByProvider() string {
	return fmt.Sprintf(`
        SELECT %s, provider_type, provider_id, email, phone_number, birth, name, gender, %s, created_at, updated_at
        FROM %s WHERE provider_type=$1 AND provider_id=$2 AND deleted_at IS NULL`,
		t.idColumn, t.pinColumn(), t.name)
}

func (t accountTable) insert() string {
	if t.hasPIN {
		return fmt.Sprintf(`
        INSERT INTO %s (provider_type, provider_id, email, phone_number, birth, name, gender, pin_hash)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (provider_type, provider_id) DO NOTHING
        RETURNING %s, created_at, updated_at`, t.name, t.idColumn)
	}
	return fmt.Sprintf(`
        INSERT INTO %s (provider_type, provider_id, email, phone_number, birth, name, gender)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (provider_type, provider_id) DO NOTHING
        RETURNING %s, created_at, updated_at`, t.name, t.idColumn)
}

type accountRepository struct {
	db *persistence.Postgres
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(db *persistence.Postgres) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) FindByProvider(ctx context.Context, role domain.Role, identity domain.ProviderIdentity) (*domain.Account, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	pool := r.db.PoolHandle()
	if pool == nil {
		return nil, persistence.ErrNoDatabase
	}
	return findAccount(ctx, pool, table, role, identity)
}

func (r *accountRepository) Register(ctx context.Context, account *domain.Account, onCommit func(context.Context)) (*domain.Account, bool, error) {
	table, err := tableFor(account.Role)
	if err != nil {
		return nil, false, err
	}
	identity := domain.ProviderIdentity{ProviderType: account.ProviderType, ProviderID: account.ProviderID}

	var (
		result  *domain.Account
		created bool
	)
	err = persistence.RunInTx(ctx, r.db, func(tx pgx.Tx, hooks *persistence.CommitHooks) error {
		existing, err := findAccount(ctx, tx, table, account.Role, identity)
		switch {
		case err == nil:
			result = existing
		case errors.Is(err, ErrAccountNotFound):
			result, created, err = insertAccount(ctx, tx, table, account)
			if err != nil {
				return err
			}
		default:
			return err
		}
		hooks.AfterCommit(onCommit)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func insertAccount(ctx context.Context, tx pgx.Tx, table accountTable, account *domain.Account) (*domain.Account, bool, error) {
	args := []any{
		string(account.ProviderType),
		account.ProviderID,
		account.Email,
		account.PhoneNumber,
		account.Birth,
		account.Name,
		string(account.Gender),
	}
	if table.hasPIN {
		args = append(args, account.PINHash)
	}

	stored := *account
	err := tx.QueryRow(ctx, table.insert(), args...).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	if err == nil {
		return &stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert %s: %w", table.name, err)
	}

	// a concurrent signup won the unique index; converge on its row
	existing, err := findAccount(ctx, tx, table, account.Role, domain.ProviderIdentity{
		ProviderType: account.ProviderType,
		ProviderID:   account.ProviderID,
	})
	if errors.Is(err, ErrAccountNotFound) {
		return nil, false, ErrAccountConflict
	}
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func findAccount(ctx context.Context, q querier, table accountTable, role domain.Role, identity domain.ProviderIdentity) (*domain.Account, error) {
	var (
		account      = domain.Account{Role: role}
		providerType string
		gender       string
		birth        time.Time
	)
	err := q.QueryRow(ctx, table.selectByProvider(), string(identity.ProviderType), identity.ProviderID).Scan(
		&account.ID,
		&providerType,
		&account.ProviderID,
		&account.Email,
		&account.PhoneNumber,
		&birth,
		&account.Name,
		&gender,
		&account.PINHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("select %s: %w", table.name, err)
	}
	account.ProviderType = domain.ProviderType(providerType)
	account.Gender = domain.Gender(gender)
	account.Birth = birth
	return &account, nil
}
