package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"mentora-auth/internal/domain"
	"mentora-auth/internal/email"
	"mentora-auth/internal/repository"
)

type mockDispatcher struct {
	mu       sync.Mutex
	messages []email.Message
	opts     []email.DeliveryOptions
	err      error
}

func (m *mockDispatcher) Enqueue(_ context.Context, msg email.Message, opts email.DeliveryOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	m.opts = append(m.opts, opts)
	return m.err
}

func (m *mockDispatcher) last() email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return email.Message{}
	}
	return m.messages[len(m.messages)-1]
}

func (m *mockDispatcher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type sequenceOTP struct {
	codes []string
	next  int
}

func (s *sequenceOTP) Generate() (string, error) {
	code := s.codes[s.next%len(s.codes)]
	s.next++
	return code, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const confirmBase = "http://localhost:8080/api/v1/auth/confirm/email/"

type testEnv struct {
	svc        *CredentialService
	repo       *repository.MemoryUserRepository
	dispatcher *mockDispatcher
	otp        *sequenceOTP
	clock      *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:       repository.NewMemoryUserRepository(),
		dispatcher: &mockDispatcher{},
		otp:        &sequenceOTP{codes: []string{"11111111", "22222222", "33333333"}},
		clock:      &fakeClock{now: time.Now().UTC()},
	}
	svc, err := NewCredentialService(zap.NewNop(), env.repo, env.dispatcher, nil, CredentialConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		BcryptCost:         4,
		ResetCodeTTL:       15 * time.Minute,
		ConfirmURLBase:     confirmBase,
		Delivery:           email.DefaultDeliveryOptions(),
	}, WithOTPGenerator(env.otp), WithNow(env.clock.Now))
	if err != nil {
		t.Fatalf("new credential service: %v", err)
	}
	env.svc = svc
	return env
}

func (e *testEnv) confirmToken(t *testing.T) string {
	t.Helper()
	msg := e.dispatcher.last()
	idx := strings.Index(msg.Text, confirmBase)
	if idx < 0 {
		t.Fatalf("expected confirmation link in email, got %q", msg.Text)
	}
	return strings.TrimSpace(msg.Text[idx+len(confirmBase):])
}

func (e *testEnv) registerConfirmed(t *testing.T, emailAddr, password string) domain.PublicUser {
	t.Helper()
	user, err := e.svc.Register(context.Background(), RegisterInput{Email: emailAddr, Password: password})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	outcome, err := e.svc.ConfirmEmail(context.Background(), e.confirmToken(t))
	if err != nil || outcome != ConfirmNewlyConfirmed {
		t.Fatalf("confirm: %v %v", outcome, err)
	}
	return user
}

func TestNewCredentialService_RejectsSharedSecrets(t *testing.T) {
	_, err := NewCredentialService(zap.NewNop(), repository.NewMemoryUserRepository(), nil, nil, CredentialConfig{
		AccessTokenSecret:  "same",
		RefreshTokenSecret: "same",
	})
	if err == nil {
		t.Fatalf("expected error for shared secrets")
	}
}

func TestRegister_CreatesPendingAccountAndSendsEmail(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.svc.Register(context.Background(), RegisterInput{
		Email:     "a@x.com",
		Password:  "pw1234",
		FirstName: " Ada ",
	})
	if err != nil {
		t.Fatalf("expected register success, got %v", err)
	}
	if user.IsConfirmed {
		t.Fatalf("expected unconfirmed account")
	}
	if user.Role != domain.RoleLearner || user.FirstName != "Ada" {
		t.Fatalf("unexpected user: %+v", user)
	}

	stored, err := env.repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("expected stored user, got %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "pw1234" {
		t.Fatalf("expected hashed password")
	}

	if env.dispatcher.count() != 1 {
		t.Fatalf("expected one email, got %d", env.dispatcher.count())
	}
	msg := env.dispatcher.last()
	if msg.To != "a@x.com" || msg.Subject != "Verify your email" {
		t.Fatalf("unexpected email: %+v", msg)
	}
	if env.dispatcher.opts[0].Attempts != 1 || env.dispatcher.opts[0].Backoff != 5*time.Second {
		t.Fatalf("unexpected delivery options: %+v", env.dispatcher.opts[0])
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := env.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "other1"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if env.dispatcher.count() != 1 {
		t.Fatalf("expected no email for duplicate registration")
	}
}

func TestRegister_RejectsAdminRole(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "pw1234", Role: domain.RoleAdmin})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRegister_RejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "pw"})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestRegister_EmailFailureDoesNotRollBack(t *testing.T) {
	env := newTestEnv(t)
	env.dispatcher.err = errors.New("queue down")

	if _, err := env.svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "pw1234"}); err != nil {
		t.Fatalf("expected register success despite email failure, got %v", err)
	}
	stored, err := env.repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("expected account kept, got %v", err)
	}
	if stored.IsConfirmed {
		t.Fatalf("expected account to stay unconfirmed")
	}
}

func TestLogin_FullConfirmationFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := env.svc.Login(ctx, "a@x.com", "pw1234"); !errors.Is(err, ErrUnconfirmedAccount) {
		t.Fatalf("expected ErrUnconfirmedAccount, got %v", err)
	}

	outcome, err := env.svc.ConfirmEmail(ctx, env.confirmToken(t))
	if err != nil || outcome != ConfirmNewlyConfirmed {
		t.Fatalf("expected newly confirmed, got %v %v", outcome, err)
	}

	res, err := env.svc.Login(ctx, "a@x.com", "pw1234")
	if err != nil {
		t.Fatalf("expected login success, got %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" || res.AccessToken == res.RefreshToken {
		t.Fatalf("expected two distinct tokens")
	}
	if !res.User.IsConfirmed || res.User.Email != "a@x.com" {
		t.Fatalf("unexpected user: %+v", res.User)
	}

	principal, err := env.svc.Authenticate(ctx, res.AccessToken)
	if err != nil || principal.UserID != res.User.ID || principal.Role != domain.RoleLearner {
		t.Fatalf("expected access token to authenticate, got %+v %v", principal, err)
	}
	if _, err := env.svc.Authenticate(ctx, res.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token must not authenticate requests, got %v", err)
	}
}

func TestLogin_UniformInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerConfirmed(t, "a@x.com", "pw1234")

	_, errUnknown := env.svc.Login(ctx, "missing@x.com", "pw1234")
	_, errWrong := env.svc.Login(ctx, "a@x.com", "wrong-pass")
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("expected identical messages, got %q / %q", errUnknown, errWrong)
	}
}

func TestLogin_UnconfirmedWithWrongPasswordIsInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := env.svc.Login(ctx, "a@x.com", "guess123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials before confirmation check, got %v", err)
	}
}

func TestConfirmEmail_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	token := env.confirmToken(t)

	first, err := env.svc.ConfirmEmail(ctx, token)
	if err != nil || first != ConfirmNewlyConfirmed {
		t.Fatalf("expected first confirm to transition, got %v %v", first, err)
	}
	second, err := env.svc.ConfirmEmail(ctx, token)
	if err != nil || second != ConfirmAlreadyConfirmed {
		t.Fatalf("expected already confirmed, got %v %v", second, err)
	}

	stored, _ := env.repo.GetByEmail(ctx, "a@x.com")
	if !stored.IsConfirmed {
		t.Fatalf("expected account to remain confirmed")
	}
}

func TestConfirmEmail_FailureOutcomes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	token := env.confirmToken(t)

	forged := NewTokenService("other-secret", time.Hour, TokenConfirm)
	forgedToken, err := forged.Generate(domain.Principal{UserID: "u1", Role: domain.RoleLearner})
	if err != nil {
		t.Fatalf("forge token: %v", err)
	}

	cases := map[string]string{
		"garbage": "not-a-token",
		"empty":   "",
		"forged":  forgedToken,
	}
	for name, tok := range cases {
		outcome, err := env.svc.ConfirmEmail(ctx, tok)
		if err != nil || outcome != ConfirmFailed {
			t.Fatalf("%s: expected ConfirmFailed, got %v %v", name, outcome, err)
		}
	}

	env.clock.Advance(time.Hour + time.Second)
	outcome, err := env.svc.ConfirmEmail(ctx, token)
	if err != nil || outcome != ConfirmFailed {
		t.Fatalf("expected expired token to fail, got %v %v", outcome, err)
	}
}

func TestConfirmEmail_DeletedUserFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, err := env.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token := env.confirmToken(t)
	if err := env.svc.DeleteAccount(ctx, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	outcome, err := env.svc.ConfirmEmail(ctx, token)
	if err != nil || outcome != ConfirmFailed {
		t.Fatalf("expected ConfirmFailed for missing user, got %v %v", outcome, err)
	}
}

func TestConfirmEmail_AccessTokenIsNotAConfirmationLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerConfirmed(t, "a@x.com", "pw1234")
	if _, err := env.svc.Register(ctx, RegisterInput{Email: "b@x.com", Password: "pw1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := env.svc.Login(ctx, "a@x.com", "pw1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	outcome, _ := env.svc.ConfirmEmail(ctx, res.AccessToken)
	if outcome != ConfirmFailed {
		t.Fatalf("expected access token to be rejected as confirmation link, got %v", outcome)
	}
}

func TestResendConfirmation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := env.svc.ResendConfirmation(ctx, "a@x.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if env.dispatcher.count() != 2 {
		t.Fatalf("expected a second verification email, got %d", env.dispatcher.count())
	}
	if outcome, _ := env.svc.ConfirmEmail(ctx, env.confirmToken(t)); outcome != ConfirmNewlyConfirmed {
		t.Fatalf("expected resent link to confirm, got %v", outcome)
	}

	if err := env.svc.ResendConfirmation(ctx, "a@x.com"); err != nil {
		t.Fatalf("resend for confirmed: %v", err)
	}
	if err := env.svc.ResendConfirmation(ctx, "missing@x.com"); err != nil {
		t.Fatalf("resend for unknown: %v", err)
	}
	if env.dispatcher.count() != 2 {
		t.Fatalf("expected no email for confirmed or unknown accounts")
	}
}

func TestIssueResetCode_UnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.IssueResetCode(context.Background(), "missing@x.com"); !errors.Is(err, ErrUnknownEmail) {
		t.Fatalf("expected ErrUnknownEmail, got %v", err)
	}
}

func TestIssueResetCode_RequiresConfirmation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := env.svc.IssueResetCode(ctx, "a@x.com"); !errors.Is(err, ErrUnconfirmedAccount) {
		t.Fatalf("expected ErrUnconfirmedAccount, got %v", err)
	}
}

func TestResetPassword_NewCodeSupersedesOld(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerConfirmed(t, "a@x.com", "pw1234")

	if err := env.svc.IssueResetCode(ctx, "a@x.com"); err != nil {
		t.Fatalf("issue first: %v", err)
	}
	if !strings.Contains(env.dispatcher.last().Text, "11111111") {
		t.Fatalf("expected first code in email")
	}
	if err := env.svc.IssueResetCode(ctx, "a@x.com"); err != nil {
		t.Fatalf("issue second: %v", err)
	}

	if err := env.svc.ResetPassword(ctx, "a@x.com", "11111111", "newpass1"); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expected stale code rejected, got %v", err)
	}
	if err := env.svc.ResetPassword(ctx, "a@x.com", "22222222", "newpass1"); err != nil {
		t.Fatalf("expected current code accepted, got %v", err)
	}

	stored, _ := env.repo.GetByEmail(ctx, "a@x.com")
	if stored.HasPendingReset() {
		t.Fatalf("expected reset code cleared")
	}
	if _, err := env.svc.Login(ctx, "a@x.com", "newpass1"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
	if _, err := env.svc.Login(ctx, "a@x.com", "pw1234"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
}

func TestResetPassword_CodeIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerConfirmed(t, "a@x.com", "pw1234")
	if err := env.svc.IssueResetCode(ctx, "a@x.com"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := env.svc.ResetPassword(ctx, "a@x.com", "11111111", "newpass1"); err != nil {
		t.Fatalf("first reset: %v", err)
	}
	if err := env.svc.ResetPassword(ctx, "a@x.com", "11111111", "newpass2"); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expected reused code rejected, got %v", err)
	}
}

func TestResetPassword_CodeBoundToEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerConfirmed(t, "a@x.com", "pw1234")
	env.registerConfirmed(t, "b@x.com", "pw1234")
	if err := env.svc.IssueResetCode(ctx, "a@x.com"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := env.svc.ResetPassword(ctx, "b@x.com", "11111111", "newpass1"); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expected code of another account rejected, got %v", err)
	}
}

func TestResetPassword_RejectsEmptyAndExpiredCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerConfirmed(t, "a@x.com", "pw1234")

	if err := env.svc.ResetPassword(ctx, "a@x.com", "  ", "newpass1"); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expected empty code rejected, got %v", err)
	}
	if err := env.svc.ResetPassword(ctx, "a@x.com", "11111111", "newpass1"); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expected code without issuance rejected, got %v", err)
	}

	if err := env.svc.IssueResetCode(ctx, "a@x.com"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	env.clock.Advance(16 * time.Minute)
	if err := env.svc.ResetPassword(ctx, "a@x.com", "11111111", "newpass1"); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expected expired code rejected, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerConfirmed(t, "a@x.com", "pw1234")

	if err := env.svc.ChangePassword(ctx, "missing", "pw1234", "newpass1"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := env.svc.ChangePassword(ctx, user.ID, "wrong-pw", "newpass1"); !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("expected ErrIncorrectPassword, got %v", err)
	}
	if err := env.svc.ChangePassword(ctx, user.ID, "pw1234", "newpass1"); err != nil {
		t.Fatalf("expected change success, got %v", err)
	}

	stored, _ := env.repo.GetByID(ctx, user.ID)
	hasher := NewPasswordHasher(4)
	if !hasher.Verify("newpass1", stored.PasswordHash) {
		t.Fatalf("expected new password stored")
	}
	if !strings.HasPrefix(stored.PasswordHash, "$2a$04$") {
		t.Fatalf("expected configured cost to be used, got %q", stored.PasswordHash[:7])
	}
}

func TestCheckPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerConfirmed(t, "a@x.com", "pw1234")

	if err := env.svc.CheckPassword(ctx, user.ID, "pw1234"); err != nil {
		t.Fatalf("expected password match, got %v", err)
	}
	if err := env.svc.CheckPassword(ctx, user.ID, "nope123"); !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("expected ErrIncorrectPassword, got %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerConfirmed(t, "a@x.com", "pw1234")

	if err := env.svc.DeleteAccount(ctx, "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := env.svc.DeleteAccount(ctx, user.ID); err != nil {
		t.Fatalf("expected delete success, got %v", err)
	}
	if _, err := env.repo.GetByID(ctx, user.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected user gone, got %v", err)
	}
}

func TestDeleteAccount_AdminProtected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, err := env.svc.CreateAdmin(ctx, RegisterInput{Email: "root@x.com", Password: "rootpass"})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if !admin.IsConfirmed || admin.Role != domain.RoleAdmin {
		t.Fatalf("expected confirmed admin, got %+v", admin)
	}

	if err := env.svc.DeleteAccount(ctx, admin.ID); !errors.Is(err, ErrProtectedRole) {
		t.Fatalf("expected ErrProtectedRole, got %v", err)
	}
	if _, err := env.repo.GetByID(ctx, admin.ID); err != nil {
		t.Fatalf("expected admin to remain, got %v", err)
	}
}

func TestProfile_IsSanitized(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerConfirmed(t, "a@x.com", "pw1234")

	profile, err := env.svc.Profile(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.ID != user.ID || !profile.IsConfirmed {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

type failingRepo struct {
	*repository.MemoryUserRepository
}

func (failingRepo) GetByEmail(context.Context, string) (domain.User, error) {
	return domain.User{}, errors.New("connection reset")
}

func TestStoreFailuresAreInternal(t *testing.T) {
	svc, err := NewCredentialService(zap.NewNop(), failingRepo{repository.NewMemoryUserRepository()}, &mockDispatcher{}, nil, CredentialConfig{
		AccessTokenSecret:  "a",
		RefreshTokenSecret: "b",
		BcryptCost:         4,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Login(context.Background(), "a@x.com", "pw1234")
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	var domainErr *Error
	if !errors.As(err, &domainErr) || domainErr.ClientFault() {
		t.Fatalf("expected server-side domain error, got %v", err)
	}
	if strings.Contains(domainErr.Message, "connection reset") {
		t.Fatalf("domain message must not leak the cause")
	}
}
