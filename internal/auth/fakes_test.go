package auth

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/model"
	"github.com/cuidamed/backend/internal/repo"
)

// fakeUserRepo is an in-memory UserRepo for unit tests.
type fakeUserRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*model.Account
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{accounts: make(map[uuid.UUID]*model.Account)}
}

func (f *fakeUserRepo) add(a model.Account) *model.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	f.accounts[a.ID] = &a
	return f.accounts[a.ID]
}

func (f *fakeUserRepo) Create(ctx context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account.ID = uuid.New()
	account.CreatedAt = time.Now()
	cp := *account
	f.accounts[account.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return model.Account{}, repo.ErrNotFound
	}
	return *a, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email {
			return *a, nil
		}
	}
	return model.Account{}, repo.ErrNotFound
}

func (f *fakeUserRepo) SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error {
	return f.update(id, func(a *model.Account) {
		a.VerificationToken = &token
	})
}

func (f *fakeUserRepo) Activate(ctx context.Context, id uuid.UUID) error {
	return f.update(id, func(a *model.Account) {
		a.Status = model.AccountActive
		a.VerificationToken = nil
	})
}

func (f *fakeUserRepo) IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := f.update(id, func(a *model.Account) {
		a.FailedAttempts++
		n = a.FailedAttempts
	})
	return n, err
}

func (f *fakeUserRepo) Lock(ctx context.Context, id uuid.UUID, until time.Time) error {
	return f.update(id, func(a *model.Account) {
		a.LockedUntil = &until
		a.FailedAttempts = 0
	})
}

func (f *fakeUserRepo) ResetLoginFailures(ctx context.Context, id uuid.UUID) error {
	return f.update(id, func(a *model.Account) {
		a.FailedAttempts = 0
		a.LockedUntil = nil
	})
}

func (f *fakeUserRepo) RecentlyLocked(ctx context.Context, since time.Time) ([]model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Account
	for _, a := range f.accounts {
		if a.LockedUntil != nil && !a.LockedUntil.Before(since) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) SetOTP(ctx context.Context, id uuid.UUID, otp int, expires time.Time) error {
	return f.update(id, func(a *model.Account) {
		a.OTP = &otp
		a.OTPExpires = &expires
	})
}

func (f *fakeUserRepo) ClearOTP(ctx context.Context, id uuid.UUID) error {
	return f.update(id, func(a *model.Account) {
		a.OTP = nil
		a.OTPExpires = nil
	})
}

func (f *fakeUserRepo) SetResetCode(ctx context.Context, id uuid.UUID, code string, expires time.Time) error {
	return f.update(id, func(a *model.Account) {
		a.ResetCode = &code
		a.ResetExpires = &expires
	})
}

func (f *fakeUserRepo) GetByValidResetCode(ctx context.Context, code string, now time.Time) (model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.ResetCode != nil && *a.ResetCode == code &&
			a.ResetExpires != nil && a.ResetExpires.After(now) {
			return *a, nil
		}
	}
	return model.Account{}, repo.ErrNotFound
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return f.update(id, func(a *model.Account) {
		a.PasswordHash = passwordHash
		a.ResetCode = nil
		a.ResetExpires = nil
	})
}

func (f *fakeUserRepo) update(id uuid.UUID, fn func(*model.Account)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return repo.ErrNotFound
	}
	fn(a)
	return nil
}

// fixedSettings is a settings.Provider backed by a plain map.
type fixedSettings struct {
	values map[string]string
}

func (s fixedSettings) GetValue(ctx context.Context, key string) (any, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	return v, nil
}

func (s fixedSettings) GetInt(ctx context.Context, key string, def int) (int, error) {
	v, ok := s.values[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, nil
	}
	return n, nil
}

func (s fixedSettings) GetString(ctx context.Context, key string) (string, error) {
	return s.values[key], nil
}

func (s fixedSettings) Set(ctx context.Context, key, value string) error {
	s.values[key] = value
	return nil
}

// fakeMail records outbound messages instead of sending them.
type fakeMail struct {
	mu            sync.Mutex
	verifications []string
	otps          []int
	resetCodes    []string
}

func (m *fakeMail) SendVerification(ctx context.Context, to, fullName, link string, lifetimeMinutes int, activationMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, link)
	return nil
}

func (m *fakeMail) SendOTP(ctx context.Context, to string, otp int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps = append(m.otps, otp)
	return nil
}

func (m *fakeMail) SendResetCode(ctx context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCodes = append(m.resetCodes, code)
	return nil
}

func (m *fakeMail) lastOTP() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.otps) == 0 {
		return 0, false
	}
	return m.otps[len(m.otps)-1], true
}

func (m *fakeMail) lastResetCode() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetCodes) == 0 {
		return "", false
	}
	return m.resetCodes[len(m.resetCodes)-1], true
}
