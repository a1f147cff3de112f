package httpapi

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"habibeat/backend/internal/domain"
	"habibeat/backend/internal/service"
	"habibeat/backend/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrProtectedAccount   = errors.New("the admin account cannot be removed or deactivated")
)

const protectedUsername = "admin"

type AuthManager struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	userStore store.UserRepository
	users     map[string]credential
}

type credential struct {
	id       string
	name     string
	password string
	role     string
	active   bool
	created  time.Time
}

type ledgerClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore store.UserRepository) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	manager := &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		users:     make(map[string]credential),
	}
	// Startup load, before any request context exists.
	manager.bootstrapUsers(context.Background())
	return manager
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	// Reload so accounts changed on another instance are honoured.
	a.bootstrapUsers(ctx)
	username := strings.ToLower(strings.TrimSpace(req.Username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	if !verifyPassword(cred.password, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !cred.active {
		return domain.LoginResponse{}, ErrInactiveAccount
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, cred.role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Username:    username,
		Name:        cred.name,
		Role:        cred.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// ParseToken validates tokenStr and returns its actor. Tokens of accounts that were
// deactivated or removed since they were issued are rejected.
func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &ledgerClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}

	a.mu.RLock()
	cred, ok := a.users[sub]
	a.mu.RUnlock()
	if a.userStore != nil && (!ok || !cred.active) {
		return domain.Actor{}, ErrInactiveAccount
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := ledgerClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "habibeat",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserAccount, error) {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Name = strings.TrimSpace(req.Name)
	if err := service.Validate(req); err != nil {
		return domain.UserAccount{}, err
	}

	a.bootstrapUsers(ctx)
	a.mu.RLock()
	_, exists := a.users[req.Username]
	a.mu.RUnlock()
	if exists {
		return domain.UserAccount{}, store.ErrConflict
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserAccount{}, errors.New("failed to hash password")
	}

	user := domain.UserAccount{
		Username:  req.Username,
		Name:      req.Name,
		Password:  passwordHash,
		Role:      req.Role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if a.userStore != nil {
		if err := a.userStore.CreateUser(ctx, user); err != nil {
			return domain.UserAccount{}, err
		}
	}

	a.mu.Lock()
	a.users[user.Username] = credential{
		id:       user.ID,
		name:     user.Name,
		password: user.Password,
		role:     user.Role,
		active:   true,
		created:  user.CreatedAt,
	}
	a.mu.Unlock()

	a.bootstrapUsers(ctx)
	return a.account(user.Username), nil
}

func (a *AuthManager) ListUsers(ctx context.Context) []domain.UserAccount {
	a.bootstrapUsers(ctx)
	a.mu.RLock()
	result := make([]domain.UserAccount, 0, len(a.users))
	for username := range a.users {
		result = append(result, a.accountLocked(username))
	}
	a.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result
}

func (a *AuthManager) SetUserActive(ctx context.Context, username string, active bool) (domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == protectedUsername && !active {
		return domain.UserAccount{}, ErrProtectedAccount
	}

	if a.userStore != nil {
		if _, err := a.userStore.SetUserActive(ctx, username, active); err != nil {
			return domain.UserAccount{}, err
		}
		a.bootstrapUsers(ctx)
	}

	a.mu.Lock()
	cred, ok := a.users[username]
	if ok {
		cred.active = active
		a.users[username] = cred
	}
	a.mu.Unlock()
	if !ok {
		return domain.UserAccount{}, store.ErrNotFound
	}
	return a.account(username), nil
}

func (a *AuthManager) DeleteUser(ctx context.Context, username string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == protectedUsername {
		return ErrProtectedAccount
	}

	if a.userStore != nil {
		if err := a.userStore.DeleteUser(ctx, username); err != nil {
			return err
		}
	}

	a.mu.Lock()
	_, ok := a.users[username]
	delete(a.users, username)
	a.mu.Unlock()
	if !ok && a.userStore == nil {
		return store.ErrNotFound
	}
	return nil
}

func (a *AuthManager) account(username string) domain.UserAccount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.accountLocked(username)
}

func (a *AuthManager) accountLocked(username string) domain.UserAccount {
	cred := a.users[username]
	return domain.UserAccount{
		ID:        cred.id,
		Username:  username,
		Name:      cred.name,
		Role:      cred.role,
		Active:    cred.active,
		CreatedAt: cred.created,
	}
}

// bootstrapUsers replaces the credential cache with the user store's accounts and
// upgrades legacy plain-text passwords to bcrypt hashes in the store.
func (a *AuthManager) bootstrapUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}

	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("user reload failed, keeping cached accounts")
		return
	}

	loaded := make(map[string]credential, len(users))
	for _, user := range users {
		username := strings.ToLower(strings.TrimSpace(user.Username))
		if username == "" {
			continue
		}
		password := user.Password
		if !isPasswordHash(password) {
			hashed, err := hashPassword(password)
			if err == nil {
				password = hashed
				if err := a.userStore.UpdateUserPassword(ctx, username, hashed); err != nil {
					log.Warn().Err(err).Str("username", username).Msg("password upgrade not saved")
				}
			}
		}
		loaded[username] = credential{
			id:       user.ID,
			name:     user.Name,
			password: password,
			role:     user.Role,
			active:   user.Active,
			created:  user.CreatedAt,
		}
	}

	a.mu.Lock()
	a.users = loaded
	a.mu.Unlock()
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
