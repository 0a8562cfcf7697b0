package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"apicore/internal/domain"
	"apicore/internal/domain/models"
	"apicore/internal/http/middleware"
	"apicore/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

// Auth serves registration and login.
type Auth struct {
	Users  *repositories.UserRepository
	Tokens *middleware.Authenticator
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

type session struct {
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Register creates a regular user and signs them in.
func (h Auth) Register(ctx context.Context, req *middleware.Request) (any, error) {
	var in models.CreateUserInput
	if err := req.Bind(&in); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)

	existing, err := h.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.Duplicate("User", "email", email)
	}

	hash, err := hashPassword(in.Password, h.Cost)
	if err != nil {
		return nil, err
	}
	user, err := h.Users.Create(ctx, repositories.Values{
		"email":         email,
		"name":          strings.TrimSpace(in.Name),
		"password_hash": hash,
		"role":          "user",
	})
	if err != nil {
		return nil, err
	}
	return h.session(user)
}

// Login checks credentials and issues a bearer token.
func (h Auth) Login(ctx context.Context, req *middleware.Request) (any, error) {
	var in models.LoginInput
	if err := req.Bind(&in); err != nil {
		return nil, err
	}
	user, err := h.Users.FindByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.InvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.InvalidCredentials()
		}
		return nil, err
	}
	return h.session(user)
}

// Me returns the authenticated user.
func (h Auth) Me(ctx context.Context, req *middleware.Request) (any, error) {
	user, err := h.Users.FindByID(ctx, req.Context.UserID, repositories.FindOptions{})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.TokenInvalid("Account no longer exists", nil)
	}
	return user, nil
}

func (h Auth) session(user *models.User) (session, error) {
	token, exp, err := h.Tokens.Issue(user.ID, user.Role)
	if err != nil {
		return session{}, err
	}
	return session{Token: token, TokenType: "Bearer", ExpiresAt: exp, User: user}, nil
}

func hashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
