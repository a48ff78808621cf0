// Package auth handles accounts: citizen self-registration, login, staff
// accounts created by admins, and the JWTs handed out on login.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/models"
	"civicdesk/backend/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

// Service manages user accounts.
type Service struct {
	store  storage.Storage
	tokens *TokenIssuer
	cost   int
	log    *zap.Logger
}

func NewService(store storage.Storage, tokens *TokenIssuer, log *zap.Logger) *Service {
	return &Service{store: store, tokens: tokens, cost: bcrypt.DefaultCost, log: log}
}

// NewAccount is the input for creating any user.
type NewAccount struct {
	Name     string
	Email    string
	Password string
	Address  string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a citizen account.
func (s *Service) Register(ctx context.Context, in NewAccount) (*models.User, error) {
	return s.create(ctx, s.store, in, models.RoleCitizen)
}

// CreateAdmin creates an admin account; used by the admin CLI only.
func (s *Service) CreateAdmin(ctx context.Context, in NewAccount) (*models.User, error) {
	return s.create(ctx, s.store, in, models.RoleAdmin)
}

// AddWorker creates a worker. Assignments address workers by name, so the
// name must not be held by another active worker.
func (s *Service) AddWorker(ctx context.Context, in NewAccount) (*models.User, error) {
	var created *models.User
	err := s.store.Transaction(ctx, func(tx storage.Storage) error {
		_, err := tx.FindActiveWorkerByName(ctx, strings.TrimSpace(in.Name))
		switch {
		case err == nil:
			return apperr.Conflict("worker_name_taken", "an active worker with this name already exists")
		case !errors.Is(err, apperr.ErrNotFound):
			return err
		}
		created, err = s.create(ctx, tx, in, models.RoleWorker)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RemoveWorker deactivates a worker. History stays intact.
func (s *Service) RemoveWorker(ctx context.Context, id uint) error {
	return s.store.DeactivateWorker(ctx, id)
}

// ListWorkers returns active workers.
func (s *Service) ListWorkers(ctx context.Context) ([]models.User, error) {
	return s.store.ListActiveWorkers(ctx)
}

// UpdateAddress changes the profile address of a user.
func (s *Service) UpdateAddress(ctx context.Context, id uint, address string) error {
	return s.store.UpdateUserAddress(ctx, id, strings.TrimSpace(address))
}

// Login checks credentials and issues a token. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	invalid := apperr.Unauthorized("invalid_credentials", "invalid credentials")

	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperr.Storage("sign token", err)
	}
	s.log.Info("user logged in", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return &LoginResult{Token: token, User: user}, nil
}

func (s *Service) create(ctx context.Context, store storage.Storage, in NewAccount, role models.Role) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" || in.Password == "" {
		return nil, apperr.Validation("missing_fields", "name, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("invalid_email", "email address is invalid")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.Validation("weak_password", "password is too short")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, apperr.Storage("hash password", err)
	}
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Address:      strings.TrimSpace(in.Address),
		IsActive:     true,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
