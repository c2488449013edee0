package repository

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/kakao-auth/internal/domain"
)

// MemoryAccountRepository keeps accounts in process memory. It backs development runs
// without POSTGRES_DSN; nothing survives a restart.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[string]domain.Account
}

var _ AccountRepository = (*MemoryAccountRepository)(nil)

// NewMemoryAccountRepository returns an empty repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]domain.Account)}
}

func memoryKey(role domain.Role, identity domain.ProviderIdentity) string {
	return string(role) + "|" + string(identity.ProviderType) + "|" + identity.ProviderID
}

func (r *MemoryAccountRepository) FindByProvider(_ context.Context, role domain.Role, identity domain.ProviderIdentity) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[memoryKey(role, identity)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (r *MemoryAccountRepository) Register(ctx context.Context, account *domain.Account, onCommit func(context.Context)) (*domain.Account, bool, error) {
	if _, err := tableFor(account.Role); err != nil {
		return nil, false, err
	}
	key := memoryKey(account.Role, domain.ProviderIdentity{ProviderType: account.ProviderType, ProviderID: account.ProviderID})

	r.mu.Lock()
	stored, exists := r.accounts[key]
	if !exists {
		r.nextID++
		now := time.Now().UTC()
		stored = *account
		stored.ID = r.nextID
		stored.CreatedAt = now
		stored.UpdatedAt = now
		r.accounts[key] = stored
	}
	r.mu.Unlock()

	if onCommit != nil {
		onCommit(context.WithoutCancel(ctx))
	}
	return &stored, !exists, nil
}
