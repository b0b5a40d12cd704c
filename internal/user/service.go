package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/shop-service/internal/db"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid user input")
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uuid.UUID) (string, error)
}

type Service interface {
	Signup(ctx context.Context, username, email, password string) (*User, error)
	Login(ctx context.Context, identifier, password string) (*LoginResult, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	CreateAddress(ctx context.Context, a *Address) (*Address, error)
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]Address, error)
	GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*Address, error)
}

type service struct {
	repo   Repository
	tx     db.TxManager
	tokens TokenIssuer
}

func NewService(repo Repository, tx db.TxManager, tokens TokenIssuer) Service {
	return &service{repo: repo, tx: tx, tokens: tokens}
}

func (s *service) Signup(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to hash password")
		return nil, fmt.Errorf("service: failed to hash password: %w", err)
	}

	u := &User{Username: username, Email: email, PasswordHash: string(hash)}
	if _, err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrUserExists) {
			log.Warn().Str("username", username).Msg("service: signup with taken username or email")
			return nil, ErrUserExists
		}
		log.Error().Err(err).Msg("service: failed to create user in repository")
		return nil, fmt.Errorf("service: failed to save user: %w", err)
	}

	log.Info().Stringer("user_id", u.ID).Msg("service: user signed up")
	return u, nil
}

func (s *service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.repo.GetByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("service: failed to look up user for login")
		return nil, fmt.Errorf("service: failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Warn().Stringer("user_id", u.ID).Msg("service: login with wrong password")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("service: failed to issue token")
		return nil, fmt.Errorf("service: failed to issue token: %w", err)
	}

	return &LoginResult{Token: token, User: *u}, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to get user by id '%s': %w", id, err)
	}
	return u, nil
}

func (s *service) CreateAddress(ctx context.Context, a *Address) (*Address, error) {
	a.AddressLine1 = strings.TrimSpace(a.AddressLine1)
	a.City = strings.TrimSpace(a.City)
	a.Country = strings.TrimSpace(a.Country)
	if a.AddressLine1 == "" || a.City == "" || a.Country == "" {
		return nil, fmt.Errorf("%w: address_line1, city and country are required", ErrInvalidInput)
	}
	a.ID = uuid.Nil

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if a.IsDefault {
			if err := s.repo.ClearDefaultAddress(ctx, a.UserID); err != nil {
				return err
			}
		}
		return s.repo.CreateAddress(ctx, a)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", a.UserID).Msg("service: failed to create address")
		return nil, fmt.Errorf("service: failed to create address: %w", err)
	}
	return a, nil
}

func (s *service) ListAddresses(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	addresses, err := s.repo.ListAddresses(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to list addresses")
		return nil, fmt.Errorf("service: failed to list addresses: %w", err)
	}
	return addresses, nil
}

// GetAddress only finds addresses owned by userID.
func (s *service) GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*Address, error) {
	a, err := s.repo.GetAddress(ctx, userID, addressID)
	if err != nil {
		if errors.Is(err, ErrAddressNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("service: failed to get address: %w", err)
	}
	return a, nil
}
