// Package auth supplies the GitHub bearer token used by every network call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wesm/issue-desk/internal/models"
	"golang.org/x/oauth2"
)

// ErrNotAuthenticated is returned when no token is available
var ErrNotAuthenticated = errors.New("not authenticated")

// TokenProvider returns the token to authenticate GitHub requests with
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a token taken from configuration or the environment
type StaticToken string

// Token implements TokenProvider
func (s StaticToken) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// AuthStore reads the auth state saved by a previous login
type AuthStore interface {
	GetAuthState() (*models.AuthState, error)
}

// StoredToken reads the token saved in the local database
type StoredToken struct {
	Store AuthStore
}

// Token implements TokenProvider
func (s StoredToken) Token(context.Context) (string, error) {
	state, err := s.Store.GetAuthState()
	if err != nil {
		return "", fmt.Errorf("failed to read stored auth: %w", err)
	}
	if state == nil || state.Token == "" {
		return "", ErrNotAuthenticated
	}
	return state.Token, nil
}

// Chain asks each provider in turn and returns the first token found
type Chain []TokenProvider

// Token implements TokenProvider
func (c Chain) Token(ctx context.Context) (string, error) {
	for _, p := range c {
		token, err := p.Token(ctx)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrNotAuthenticated) {
			return "", err
		}
	}
	return "", ErrNotAuthenticated
}

// TokenSource adapts a TokenProvider for oauth2 HTTP clients. Each call asks
// the provider again; wrapping it in oauth2.ReuseTokenSource (as
// oauth2.NewClient does) would pin the first token for good.
func TokenSource(ctx context.Context, p TokenProvider) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, provider: p}
}

type tokenSource struct {
	ctx      context.Context
	provider TokenProvider
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.provider.Token(ts.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
