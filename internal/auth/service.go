package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash plain password to hashed password: %w", err)
	}
	return string(hashedPassword), nil
}

func ComparePasswords(hashedPwd string, plainPwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPwd), []byte(plainPwd))
	return err == nil
}

type Storage interface {
	SaveUser(ctx context.Context, user User) error
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	SaveSession(ctx context.Context, session Session) error
	GetSessionByToken(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, token string, expireAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
}

// Sessions closer than this to expiry are extended on use.
const sessionRenewWindow = 5 * 24 * time.Hour

// Service is the identity source: it owns credentials and session tokens and
// hands out Identity values. Nothing downstream sees passwords or tokens.
type Service struct {
	storage    Storage
	sessionTTL time.Duration
	nowFn      func() time.Time
}

func NewService(s Storage, sessionTTL time.Duration) *Service {
	return &Service{
		storage:    s,
		sessionTTL: sessionTTL,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Register(ctx context.Context, newUser NewUser) (string, error) {
	newUser.Email = strings.ToLower(strings.TrimSpace(newUser.Email))
	if err := newUser.ValidateUserFields(); err != nil {
		return "", err
	}

	_, err := s.storage.GetUserByEmail(ctx, newUser.Email)
	if err == nil {
		return "", appErrors.ErrorResponse{
			Code:    appErrors.ErrConflict,
			Message: fmt.Sprintf("this '%s' email address already taken, try to register with another email.", newUser.Email),
		}
	}
	if !errors.Is(err, appErrors.NotFound) {
		return "", fmt.Errorf("failed to check email availability: %w", err)
	}

	hashedPassword, err := HashPassword(newUser.PasswordPlain)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := User{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(newUser.Name),
		Email:          newUser.Email,
		PasswordHashed: hashedPassword,
		CreatedAt:      s.nowFn(),
	}
	if err := s.storage.SaveUser(ctx, user); err != nil {
		return "", fmt.Errorf("failed to registration: %w", err)
	}

	token, err := s.newSession(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("registration successfully but failed to generate session: %w | try login", err)
	}
	return token, nil
}

func (s *Service) Login(ctx context.Context, credentials UserCredentialsPure) (string, error) {
	if credentials.Email == "" || credentials.PasswordPlain == "" {
		return "", appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Email and password are required.",
		}
	}

	user, err := s.storage.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(credentials.Email)))
	if err != nil {
		if errors.Is(err, appErrors.NotFound) {
			return "", appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "Email or password is wrong."}
		}
		return "", err
	}
	if !ComparePasswords(user.PasswordHashed, credentials.PasswordPlain) {
		return "", appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "Email or password is wrong."}
	}

	return s.newSession(ctx, user.ID)
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.storage.DeleteSession(ctx, strings.TrimSpace(strings.TrimPrefix(token, "Bearer ")))
}

// CurrentUser resolves a session token to the identity it belongs to.
func (s *Service) CurrentUser(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Identity{}, appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "Authorization header is required."}
	}

	session, err := s.storage.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, appErrors.NotFound) {
			return Identity{}, appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "Session does not exist, please login."}
		}
		return Identity{}, err
	}
	now := s.nowFn()
	if session.ExpireAt.Before(now) {
		return Identity{}, appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "Your session expired, please login again."}
	}
	if session.ExpireAt.Sub(now) <= sessionRenewWindow {
		if err := s.storage.UpdateSession(ctx, token, now.Add(s.sessionTTL)); err != nil {
			return Identity{}, fmt.Errorf("failed to update session: %w", err)
		}
	}

	user, err := s.storage.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, appErrors.NotFound) {
			return Identity{}, appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "Session user no longer exists."}
		}
		return Identity{}, err
	}
	return user.Identity(), nil
}

func (s *Service) newSession(ctx context.Context, userID string) (string, error) {
	tokenByte := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, tokenByte); err != nil {
		return "", fmt.Errorf("failed to generate new session: %w", err)
	}
	token := hex.EncodeToString(tokenByte)

	now := s.nowFn()
	session := Session{
		ID:        uuid.New().String(),
		Token:     token,
		CreatedAt: now,
		ExpireAt:  now.Add(s.sessionTTL),
		UserID:    userID,
	}
	if err := s.storage.SaveSession(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return token, nil
}
