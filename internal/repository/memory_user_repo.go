package repository

import (
	"context"
	"sync"
	"time"

	"mentora-auth/internal/domain"
)

// MemoryUserRepository guarda usuarios en memoria. Se usa en tests y cuando
// no hay DATABASE_URL configurada.
type MemoryUserRepository struct {
	mu      sync.Mutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryUserRepository) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[user.Email]; ok {
		return ErrDuplicateEmail
	}
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

func (m *MemoryUserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return m.byID[id], nil
}

func (m *MemoryUserRepository) Update(_ context.Context, id string, update domain.UserUpdate) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	if update.Empty() {
		return user, nil
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	user.UpdatedAt = time.Now().UTC()
	m.byID[id] = user
	return user, nil
}

func (m *MemoryUserRepository) MarkConfirmed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if user.IsConfirmed {
		return false, nil
	}
	user.IsConfirmed = true
	user.UpdatedAt = time.Now().UTC()
	m.byID[id] = user
	return true, nil
}

func (m *MemoryUserRepository) SetResetCode(_ context.Context, id, codeHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	user.ResetCodeHash = codeHash
	user.ResetCodeExpiresAt = &expiresAt
	user.UpdatedAt = time.Now().UTC()
	m.byID[id] = user
	return nil
}

func (m *MemoryUserRepository) ConsumeResetCode(_ context.Context, id, expectedCodeHash, newPasswordHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok || user.ResetCodeHash == "" || user.ResetCodeHash != expectedCodeHash {
		return false, nil
	}
	user.PasswordHash = newPasswordHash
	user.ResetCodeHash = ""
	user.ResetCodeExpiresAt = nil
	user.UpdatedAt = time.Now().UTC()
	m.byID[id] = user
	return true, nil
}

func (m *MemoryUserRepository) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	delete(m.byID, id)
	delete(m.byEmail, user.Email)
	return true, nil
}
