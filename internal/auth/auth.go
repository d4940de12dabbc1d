package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"electrostock/internal/cache"
	"electrostock/internal/domain"
	"electrostock/internal/mailer"
	"electrostock/internal/store"
)

const (
	maxLoginFailures = 5
	lockoutDuration  = 60 * time.Second
	resetCodeTTL     = 15 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("too many failed attempts, try again later")
	ErrNotVerified        = errors.New("account not verified")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrWeakPassword       = errors.New("password must be at least 8 characters with upper, lower, digit and special")
)

// UserStore is the slice of the repository the auth manager needs.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
}

type failureState struct {
	count       int
	lockedUntil time.Time
}

type Manager struct {
	mu       sync.Mutex
	secret   []byte
	tokenTTL time.Duration
	users    UserStore
	codes    cache.CodeStore
	mail     mailer.Mailer
	failures map[string]*failureState
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

func NewManager(secret string, tokenTTL time.Duration, users UserStore, codes cache.CodeStore, mail mailer.Mailer) *Manager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if codes == nil {
		codes = cache.NewMemoryCodeStore()
	}
	if mail == nil {
		mail = mailer.LogMailer{}
	}

	return &Manager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
		codes:    codes,
		mail:     mail,
		failures: make(map[string]*failureState),
	}
}

// Register creates an unverified account and emails an 8-character
// verification code.
func (m *Manager) Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return domain.User{}, store.ErrInvalidTransaction
	}
	if err := validatePassword(req.Password); err != nil {
		return domain.User{}, err
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.RoleEmployee
	}
	if role != domain.RoleAdmin && role != domain.RoleEmployee {
		return domain.User{}, store.ErrInvalidTransaction
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	code, err := randomCode(verificationAlphabet, 8)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		Name:             name,
		Email:            email,
		PasswordHash:     string(hash),
		Role:             role,
		VerificationCode: code,
		Verified:         false,
	}
	created, err := m.users.CreateUser(ctx, user)
	if err != nil {
		return domain.User{}, err
	}

	body := fmt.Sprintf("Hola %s,\n\nTu codigo de verificacion es: %s\n", created.Name, code)
	if err := m.mail.Send(ctx, created.Email, "Verifica tu cuenta", body); err != nil {
		log.Printf("[auth] WARN: failed to send verification mail to %s: %v", created.Email, err)
	}
	return *created, nil
}

// VerifyAccount activates an account when the submitted code matches
// the stored verification code.
func (m *Manager) VerifyAccount(ctx context.Context, email string, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return ErrInvalidCode
	}
	if user.Verified {
		return nil
	}
	if user.VerificationCode == "" || user.VerificationCode != strings.ToUpper(strings.TrimSpace(code)) {
		return ErrInvalidCode
	}

	user.Verified = true
	user.VerificationCode = ""
	if _, err := m.users.UpdateUser(ctx, *user); err != nil {
		return err
	}
	return nil
}

// Login authenticates a verified account. Five consecutive failures
// lock the account for sixty seconds; a success resets the counter.
func (m *Manager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	if m.isLocked(email) {
		return domain.LoginResponse{}, ErrAccountLocked
	}

	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		m.recordFailure(email)
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		m.recordFailure(email)
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !user.Verified {
		return domain.LoginResponse{}, ErrNotVerified
	}

	m.resetFailures(email)

	expiresAt := time.Now().UTC().Add(m.tokenTTL)
	token, err := m.sign(*user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      *user,
	}, nil
}

// RequestPasswordReset stores a 6-digit code for fifteen minutes and
// emails it. Unknown emails are reported as success so callers cannot
// enumerate accounts.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		log.Printf("[auth] password reset requested for unknown email %s", email)
		return nil
	}

	code, err := randomCode(digitAlphabet, 6)
	if err != nil {
		return err
	}
	if err := m.codes.Set(ctx, resetKey(email), code, resetCodeTTL); err != nil {
		return err
	}

	body := fmt.Sprintf("Hola %s,\n\nTu codigo de recuperacion es: %s\nCaduca en 15 minutos.\n", user.Name, code)
	if err := m.mail.Send(ctx, user.Email, "Recuperacion de contrasena", body); err != nil {
		log.Printf("[auth] WARN: failed to send reset mail to %s: %v", user.Email, err)
	}
	return nil
}

// ConfirmPasswordReset validates the code, applies the password policy
// and consumes the code.
func (m *Manager) ConfirmPasswordReset(ctx context.Context, email string, code string, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	stored, ok, err := m.codes.Get(ctx, resetKey(email))
	if err != nil {
		return err
	}
	if !ok || stored != strings.TrimSpace(code) {
		return ErrInvalidCode
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return ErrInvalidCode
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	if _, err := m.users.UpdateUser(ctx, *user); err != nil {
		return err
	}

	if err := m.codes.Delete(ctx, resetKey(email)); err != nil {
		log.Printf("[auth] WARN: failed to delete reset code for %s: %v", email, err)
	}
	m.resetFailures(email)
	return nil
}

func (m *Manager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &accessClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{UserID: sub, Name: claims.Name, Role: claims.Role}, nil
}

func (m *Manager) sign(user domain.User, expiresAt time.Time) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "electrostock",
		},
		Name: user.Name,
		Role: user.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) isLocked(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.failures[email]
	if !ok {
		return false
	}
	if state.lockedUntil.IsZero() {
		return false
	}
	if time.Now().After(state.lockedUntil) {
		delete(m.failures, email)
		return false
	}
	return true
}

func (m *Manager) recordFailure(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.failures[email]
	if !ok {
		state = &failureState{}
		m.failures[email] = state
	}
	state.count++
	if state.count >= maxLoginFailures {
		state.lockedUntil = time.Now().Add(lockoutDuration)
		state.count = 0
	}
}

func (m *Manager) resetFailures(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, email)
}

func resetKey(email string) string {
	return "reset:" + email
}

const (
	verificationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	digitAlphabet        = "0123456789"
)

func randomCode(alphabet string, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}
