package datti

import (
	"context"
	"log"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// NewOAuthConfig returns the token endpoint configuration of the Datti API.
// Sign-in uses the password grant; refreshes use the refresh-token grant.
func NewOAuthConfig(baseURL, clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimRight(baseURL, "/") + "/auth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// SignIn exchanges user credentials for a token pair.
func SignIn(ctx context.Context, conf *oauth2.Config, email, password string) (*oauth2.Token, error) {
	return conf.PasswordCredentialsToken(ctx, email, password)
}

// TokenSaver persists a token after it has been refreshed.
type TokenSaver func(ctx context.Context, tok *oauth2.Token) error

// SessionHooks let the owner of a session react to its token lifecycle.
type SessionHooks struct {
	Save    TokenSaver                // after a successful refresh
	Revoked func(ctx context.Context) // once the refresh token is refused
}

type savingTokenSource struct {
	ctx   context.Context
	base  oauth2.TokenSource
	hooks SessionHooks

	mu      sync.Mutex
	last    string
	revoked bool
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if IsSessionRevoked(err) && !s.revoked {
			s.revoked = true
			if s.hooks.Revoked != nil {
				s.hooks.Revoked(s.ctx)
			}
		}
		return nil, err
	}

	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if s.hooks.Save != nil {
			if err := s.hooks.Save(s.ctx, tok); err != nil {
				log.Printf("[DATTI] failed to persist refreshed token: %v", err)
			}
		}
	}
	return tok, nil
}

// NewSessionClient returns a Client authenticated with tok. When the access
// token expires it is refreshed transparently and handed to hooks.Save; a
// refused refresh is reported once through hooks.Revoked.
func NewSessionClient(ctx context.Context, conf *oauth2.Config, baseURL string, tok *oauth2.Token, hooks SessionHooks) *Client {
	ts := &savingTokenSource{
		ctx:   ctx,
		base:  conf.TokenSource(ctx, tok),
		hooks: hooks,
		last:  tok.AccessToken,
	}
	return NewClient(baseURL, oauth2.NewClient(ctx, ts))
}
