package user

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-relay/internal/identity"
)

// Service is the auth collaborator: it turns credentials into signed
// tokens and tokens back into identities. The chat core only ever sees
// the resulting identity.
type Service struct {
	repo      *Repository
	jwtSecret string
}

type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Guest    bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

func NewService(repo *Repository, secret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: secret,
	}
}

// ErrNoAccounts is returned when the server runs without a database;
// guest login still works in that mode.
var ErrNoAccounts = errors.New("user accounts unavailable without a database")

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	if s.repo == nil {
		return nil, ErrNoAccounts
	}
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:       uuid.NewString(),
		Username: req.Username,
		Password: string(hashedPwd),
	}

	return s.repo.CreateUser(ctx, u)
}

func (s *Service) Login(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	if s.repo == nil {
		return nil, ErrNoAccounts
	}
	u, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, err
	}

	return s.issue(identity.NewRegistered(u.ID, u.Username), 24*time.Hour)
}

// GuestLogin issues a short-lived token for a generated guest identity.
// Guests never touch the users table.
func (s *Service) GuestLogin(req *GuestRequest) (*LoginResponse, error) {
	if req.Username == "" {
		return nil, errors.New("username is required")
	}
	return s.issue(identity.NewGuest(req.Username), 4*time.Hour)
}

func (s *Service) issue(ident identity.Identity, ttl time.Duration) (*LoginResponse, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:       ident.UserID,
		Username: ident.Username,
		Guest:    ident.Guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "go-relay",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken: ss,
		ID:          ident.UserID,
		Username:    ident.Username,
		Guest:       ident.Guest,
	}, nil
}

// ValidateToken resolves a token back to the identity it was issued
// for.
func (s *Service) ValidateToken(tokenString string) (identity.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return identity.Identity{}, err
	}
	if !token.Valid {
		return identity.Identity{}, errors.New("invalid token")
	}

	return identity.Identity{
		UserID:   claims.ID,
		Username: claims.Username,
		Guest:    claims.Guest,
	}, nil
}

func (s *Service) SearchUsers(ctx context.Context, query string) ([]User, error) {
	if s.repo == nil {
		return nil, ErrNoAccounts
	}
	return s.repo.SearchUsers(ctx, query)
}
