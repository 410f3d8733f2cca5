// Package auth registers users and verifies their credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atharvakonge/papertrade/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists users
type UserStore interface {
	CreateUser(ctx context.Context, username, hash string, cash decimal.Decimal) (int64, error)
	UserByUsername(ctx context.Context, username string) (models.User, error)
}

// Service handles registration and login
type Service struct {
	users        UserStore
	cost         int
	startingCash decimal.Decimal
	dummyHash    []byte
	logger       *logrus.Entry
}

// NewService creates the service. cost is the bcrypt work factor.
func NewService(users UserStore, cost int, startingCash decimal.Decimal, logger *logrus.Entry) (*Service, error) {
	// compared against when the username is unknown, so both paths pay for bcrypt
	dummy, err := bcrypt.GenerateFromPassword([]byte("papertrade"), cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt setup: %w", err)
	}
	return &Service{
		users:        users,
		cost:         cost,
		startingCash: startingCash,
		dummyHash:    dummy,
		logger:       logger,
	}, nil
}

// HashPassword returns a salted bcrypt hash
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Register creates a user with the starting cash balance
func (s *Service) Register(ctx context.Context, username, password, confirmation string) (int64, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return 0, models.ErrMissingUsername
	case password == "":
		return 0, models.ErrMissingPassword
	case confirmation == "":
		return 0, models.ErrMissingConfirmation
	case password != confirmation:
		return 0, models.ErrPasswordMismatch
	}

	_, err := s.users.UserByUsername(ctx, username)
	if err == nil {
		return 0, models.ErrUsernameTaken
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return 0, err
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	// the unique index still catches a concurrent registration
	id, err := s.users.CreateUser(ctx, username, hash, s.startingCash)
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"method":   "Register",
		"user_id":  id,
		"username": username,
	}).Info("user registered")
	return id, nil
}

// Login verifies credentials. Unknown users and wrong passwords produce the
// same error.
func (s *Service) Login(ctx context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, models.ErrMissingUsername
	}
	if password == "" {
		return models.User{}, models.ErrMissingPassword
	}

	var l = s.logger.WithFields(logrus.Fields{
		"method":   "Login",
		"username": username,
	})

	user, err := s.users.UserByUsername(ctx, username)
	if errors.Is(err, models.ErrUserNotFound) {
		bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		l.Info("login rejected")
		return models.User{}, models.ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}

	if !CheckPassword(user.Hash, password) {
		l.Info("login rejected")
		return models.User{}, models.ErrInvalidCredentials
	}

	l.WithField("user_id", user.ID).Info("login succeeded")
	return user, nil
}
