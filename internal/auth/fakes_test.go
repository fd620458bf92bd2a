package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwllll/auth-service/internal/logging"
	"github.com/cwllll/auth-service/internal/user"
)

// In-memory fakes for the service's store interfaces. They reproduce the
// contracts the real bun/redis implementations provide: expiry enforced at
// lookup and single-winner consumption under concurrent access.

type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*user.User
	accounts map[string]*user.Account
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[uuid.UUID]*user.User),
		accounts: make(map[string]*user.Account),
	}
}

func accountKey(provider, providerAccountID string) string {
	return provider + "|" + providerAccountID
}

func (f *fakeUserRepo) Create(_ context.Context, email, name string, passwordHash *string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	normalized := user.NormalizeEmail(email)
	for _, u := range f.users {
		if u.Email == normalized {
			return nil, user.ErrDuplicateEmail
		}
	}

	now := time.Now()
	u := &user.User{
		ID:           uuid.New(),
		Email:        normalized,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	normalized := user.NormalizeEmail(email)
	for _, u := range f.users {
		if u.Email == normalized {
			copied := *u
			return &copied, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) MarkEmailVerified(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.EmailVerified = true
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUserRepo) LinkAccount(_ context.Context, userID uuid.UUID, provider, providerAccountID string, tokens user.AccountTokens) (*user.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := accountKey(provider, providerAccountID)
	if _, exists := f.accounts[key]; exists {
		return nil, user.ErrDuplicateAccount
	}

	now := time.Now()
	a := &user.Account{
		ID:                uuid.New(),
		UserID:            userID,
		Provider:          provider,
		ProviderAccountID: providerAccountID,
		AccessToken:       tokens.AccessToken,
		RefreshToken:      tokens.RefreshToken,
		TokenExpiresAt:    tokens.ExpiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	f.accounts[key] = a
	return a, nil
}

func (f *fakeUserRepo) GetAccount(_ context.Context, provider, providerAccountID string) (*user.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.accounts[accountKey(provider, providerAccountID)]
	if !ok {
		return nil, user.ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeUserRepo) UpdateAccountTokens(_ context.Context, accountID uuid.UUID, tokens user.AccountTokens) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.accounts {
		if a.ID == accountID {
			a.AccessToken = tokens.AccessToken
			a.RefreshToken = tokens.RefreshToken
			a.TokenExpiresAt = tokens.ExpiresAt
			a.UpdatedAt = time.Now()
			return nil
		}
	}
	return user.ErrAccountNotFound
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*Session)}
}

func (f *fakeSessionRepo) Create(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, meta ClientMeta) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	s := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.sessions[tokenHash] = s
	copied := *s
	return &copied, nil
}

func (f *fakeSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[tokenHash]
	if !ok || s.IsExpired() {
		return nil, ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionRepo) Touch(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.sessions {
		if s.ID == id && !s.IsExpired() {
			s.ExpiresAt = expiresAt
			s.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrSessionNotFound
}

func (f *fakeSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeSessionRepo) DeleteAllForUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, hash)
		}
	}
	return nil
}

func (f *fakeSessionRepo) DeleteExpired(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, s := range f.sessions {
		if s.IsExpired() {
			delete(f.sessions, hash)
		}
	}
	return nil
}

// backdate rewinds a session's bookkeeping to exercise expiry and sliding
// refresh without sleeping in tests
func (f *fakeSessionRepo) backdate(tokenHash string, updatedAt, expiresAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[tokenHash]; ok {
		s.UpdatedAt = updatedAt
		s.ExpiresAt = expiresAt
	}
}

type storedVerification struct {
	value     string
	expiresAt time.Time
}

type fakeVerificationStore struct {
	mu    sync.Mutex
	links map[string]storedVerification // token -> identifier
	otps  map[string]storedVerification // identifier -> code
}

func newFakeVerificationStore() *fakeVerificationStore {
	return &fakeVerificationStore{
		links: make(map[string]storedVerification),
		otps:  make(map[string]storedVerification),
	}
}

func (f *fakeVerificationStore) StoreLinkToken(_ context.Context, identifier, token string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Replace any prior token for the identifier
	for t, entry := range f.links {
		if entry.value == identifier {
			delete(f.links, t)
		}
	}
	f.links[token] = storedVerification{value: identifier, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (f *fakeVerificationStore) ConsumeLinkToken(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.links[token]
	if !ok {
		return "", ErrVerificationNotFound
	}
	delete(f.links, token)
	if time.Now().After(entry.expiresAt) {
		return "", ErrVerificationNotFound
	}
	return entry.value, nil
}

func (f *fakeVerificationStore) StoreOTP(_ context.Context, identifier, code string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otps[identifier] = storedVerification{value: code, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (f *fakeVerificationStore) ConsumeOTP(_ context.Context, identifier, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.otps[identifier]
	if !ok || entry.value != code {
		return ErrVerificationNotFound
	}
	delete(f.otps, identifier)
	if time.Now().After(entry.expiresAt) {
		return ErrVerificationNotFound
	}
	return nil
}

func (f *fakeVerificationStore) linkTokenCount(identifier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, entry := range f.links {
		if entry.value == identifier {
			count++
		}
	}
	return count
}

type sentMail struct {
	To    string
	Name  string
	Token string
	Code  string
}

type fakeEmailService struct {
	mu            sync.Mutex
	verifications []sentMail
	otps          []sentMail
	fail          bool
}

func newFakeEmailService() *fakeEmailService {
	return &fakeEmailService{}
}

func (f *fakeEmailService) SendVerificationEmail(_ context.Context, toEmail, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errorsNewDeliveryFailure
	}
	f.verifications = append(f.verifications, sentMail{To: toEmail, Name: name, Token: token})
	return nil
}

func (f *fakeEmailService) SendOTPEmail(_ context.Context, toEmail, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errorsNewDeliveryFailure
	}
	f.otps = append(f.otps, sentMail{To: toEmail, Code: code})
	return nil
}

func (f *fakeEmailService) lastVerification() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifications[len(f.verifications)-1]
}

func (f *fakeEmailService) lastOTP() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.otps[len(f.otps)-1]
}

var errorsNewDeliveryFailure = &deliveryFailure{}

type deliveryFailure struct{}

func (*deliveryFailure) Error() string { return "smtp unreachable" }

type testEnv struct {
	service       *Service
	users         *fakeUserRepo
	sessions      *fakeSessionRepo
	verifications *fakeVerificationStore
	emails        *fakeEmailService
}

func newTestEnv() *testEnv {
	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	verifications := newFakeVerificationStore()
	emails := newFakeEmailService()

	service := NewService(
		users,
		sessions,
		verifications,
		emails,
		logging.NewLogger(true),
		30*24*time.Hour, // session TTL
		24*time.Hour,    // session update age
		24*time.Hour,    // link token TTL
		5*time.Minute,   // OTP TTL
	)

	return &testEnv{
		service:       service,
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		emails:        emails,
	}
}

// signUpVerified provisions a verified user ready to sign in
func (e *testEnv) signUpVerified(ctx context.Context, email, password string) error {
	if _, err := e.service.SignUp(ctx, email, "Test User", password); err != nil {
		return err
	}
	return e.service.VerifyEmail(ctx, e.emails.lastVerification().Token)
}
