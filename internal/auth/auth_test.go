package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"electrostock/internal/cache"
	"electrostock/internal/domain"
	"electrostock/internal/store/memory"
)

// capturingMailer records every message so tests can read the codes
// that would have been emailed.
type capturingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *capturingMailer) Send(_ context.Context, _ string, _ string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, body)
	return nil
}

func (m *capturingMailer) lastBody(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("expected at least one mail to have been sent")
	}
	return m.sent[len(m.sent)-1]
}

func newTestManager() (*Manager, *capturingMailer) {
	mail := &capturingMailer{}
	m := NewManager("0123456789abcdef0123456789abcdef", time.Hour, memory.New(), cache.NewMemoryCodeStore(), mail)
	return m, mail
}

func extractCode(t *testing.T, body string) string {
	t.Helper()
	idx := strings.LastIndex(body, ": ")
	if idx < 0 {
		t.Fatalf("no code found in mail body %q", body)
	}
	rest := body[idx+2:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}

func TestRegisterSendsVerificationCode(t *testing.T) {
	m, mail := newTestManager()

	user, err := m.Register(context.Background(), domain.RegisterRequest{
		Name:     "Maria Lopez",
		Email:    "Maria@Example.com",
		Password: "Secreta#1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "maria@example.com" {
		t.Fatalf("expected lowercased email, got %s", user.Email)
	}
	if user.Verified {
		t.Fatalf("new accounts must start unverified")
	}
	if user.Role != domain.RoleEmployee {
		t.Fatalf("expected default employee role, got %s", user.Role)
	}

	code := extractCode(t, mail.lastBody(t))
	if len(code) != 8 {
		t.Fatalf("expected 8-character verification code, got %q", code)
	}
}

func TestRegisterRejectsWeakPasswords(t *testing.T) {
	m, _ := newTestManager()

	for _, password := range []string{"short1!", "alllowercase1!", "ALLUPPER1!", "NoDigits!!", "NoSpecial11"} {
		_, err := m.Register(context.Background(), domain.RegisterRequest{
			Name:     "Test",
			Email:    "weak@example.com",
			Password: password,
		})
		if !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("expected ErrWeakPassword for %q, got %v", password, err)
		}
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	req := domain.RegisterRequest{Name: "A", Email: "dup@example.com", Password: "Secreta#1"}
	if _, err := m.Register(ctx, req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := m.Register(ctx, req); err == nil {
		t.Fatalf("expected duplicate email to be rejected")
	}
}

func TestLoginRequiresVerification(t *testing.T) {
	m, mail := newTestManager()
	ctx := context.Background()

	if _, err := m.Register(ctx, domain.RegisterRequest{Name: "A", Email: "v@example.com", Password: "Secreta#1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := m.Login(ctx, domain.LoginRequest{Email: "v@example.com", Password: "Secreta#1"})
	if !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}

	code := extractCode(t, mail.lastBody(t))
	if err := m.VerifyAccount(ctx, "v@example.com", code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	resp, err := m.Login(ctx, domain.LoginRequest{Email: "v@example.com", Password: "Secreta#1"})
	if err != nil {
		t.Fatalf("login after verify: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("expected a signed token")
	}

	actor, err := m.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.UserID != resp.User.ID || actor.Role != domain.RoleEmployee {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestVerifyAccountRejectsWrongCode(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Register(ctx, domain.RegisterRequest{Name: "A", Email: "w@example.com", Password: "Secreta#1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.VerifyAccount(ctx, "w@example.com", "WRONG123"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestLoginLocksAfterFiveFailures(t *testing.T) {
	m, mail := newTestManager()
	ctx := context.Background()

	if _, err := m.Register(ctx, domain.RegisterRequest{Name: "A", Email: "lock@example.com", Password: "Secreta#1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	code := extractCode(t, mail.lastBody(t))
	if err := m.VerifyAccount(ctx, "lock@example.com", code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	for i := 0; i < 5; i++ {
		_, err := m.Login(ctx, domain.LoginRequest{Email: "lock@example.com", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// Even the right password is rejected while locked.
	_, err := m.Login(ctx, domain.LoginRequest{Email: "lock@example.com", Password: "Secreta#1"})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	m, mail := newTestManager()
	ctx := context.Background()

	if _, err := m.Register(ctx, domain.RegisterRequest{Name: "A", Email: "r@example.com", Password: "Secreta#1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	verifyCode := extractCode(t, mail.lastBody(t))
	if err := m.VerifyAccount(ctx, "r@example.com", verifyCode); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := m.RequestPasswordReset(ctx, "r@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	resetCode := extractCode(t, mail.lastBody(t))
	if len(resetCode) != 6 {
		t.Fatalf("expected 6-digit reset code, got %q", resetCode)
	}

	if err := m.ConfirmPasswordReset(ctx, "r@example.com", resetCode, "Nueva#456"); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}

	if _, err := m.Login(ctx, domain.LoginRequest{Email: "r@example.com", Password: "Secreta#1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := m.Login(ctx, domain.LoginRequest{Email: "r@example.com", Password: "Nueva#456"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	// The code is consumed.
	if err := m.ConfirmPasswordReset(ctx, "r@example.com", resetCode, "Otra#789x"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected consumed code to be rejected, got %v", err)
	}
}

func TestRequestPasswordResetHidesUnknownEmails(t *testing.T) {
	m, mail := newTestManager()

	if err := m.RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("expected success for unknown email, got %v", err)
	}
	mail.mu.Lock()
	defer mail.mu.Unlock()
	if len(mail.sent) != 0 {
		t.Fatalf("no mail must be sent for unknown emails")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	m, _ := newTestManager()

	if _, err := m.ParseToken("not-a-token"); err == nil {
		t.Fatalf("expected parse failure")
	}
}
