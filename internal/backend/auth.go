package backend

import (
	"context"
	"net/http"
	"strings"

	"github.com/thequtt/qutt-client/pkg/auth/session"
	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
	"github.com/thequtt/qutt-client/pkg/validators"
)

const (
	pathLogin    = "/users/token/"
	pathRegister = "/users/register/"
	pathRefresh  = "/users/token/refresh/"
	pathProfile  = "/users/profile/"
)

// TokenPair is returned by the login and refresh endpoints.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// LoginRequest is the body of POST /users/token/.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /users/register/.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// User is the profile of the signed-in account.
type User struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, req LoginRequest) (TokenPair, error) {
	req.Email = validators.SanitizeString(req.Email, 254)
	if err := validators.Struct(req); err != nil {
		return TokenPair{}, err
	}
	var pair TokenPair
	if err := c.do(ctx, call{op: "users.login", method: http.MethodPost, path: pathLogin, body: req, out: &pair}); err != nil {
		return TokenPair{}, err
	}
	if strings.TrimSpace(pair.Access) == "" {
		return TokenPair{}, pkgerrors.New(pkgerrors.CodeDependency, "login response missing access token")
	}
	return pair, nil
}

// Register creates an account. The caller signs in separately.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Email = validators.SanitizeString(req.Email, 254)
	req.FirstName = validators.SanitizeString(req.FirstName, 150)
	req.LastName = validators.SanitizeString(req.LastName, 150)
	if err := validators.Struct(req); err != nil {
		return nil, err
	}
	var user User
	if err := c.do(ctx, call{op: "users.register", method: http.MethodPost, path: pathRegister, body: req, out: &user}); err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshTokens implements session.Refresher. A 2xx response without an
// access token is a failure.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (session.Tokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return session.Tokens{}, pkgerrors.New(pkgerrors.CodeValidation, "refresh token is required")
	}
	var pair TokenPair
	body := map[string]string{"refresh": refreshToken}
	if err := c.do(ctx, call{op: "users.refresh", method: http.MethodPost, path: pathRefresh, body: body, out: &pair}); err != nil {
		return session.Tokens{}, err
	}
	if strings.TrimSpace(pair.Access) == "" {
		return session.Tokens{}, pkgerrors.New(pkgerrors.CodeDependency, "refresh response missing access token")
	}
	return session.Tokens{Access: pair.Access, Refresh: pair.Refresh}, nil
}

// Profile returns the signed-in user.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, call{op: "users.profile", method: http.MethodGet, path: pathProfile, out: &user, auth: authRequired}); err != nil {
		return nil, err
	}
	return &user, nil
}
