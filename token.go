package wolfcomm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenClientID = "smartset.web.application"
	tokenScope    = "openid api offline_access"
)

// Tokens holds the bearer tokens issued by the portal's identity server
// together with the access token's expiry.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token is unusable. The check is
// conservative: a token within tokenExpiryMargin of its expiry already counts
// as expired.
func (t *Tokens) Expired() bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	return !time.Now().Add(tokenExpiryMargin).Before(t.ExpiresAt)
}

// TokenProvider produces fresh bearer tokens. The client decides when to call
// it; implementations must tolerate repeated calls.
type TokenProvider interface {
	Token(client *http.Client) (*Tokens, error)
}

// passwordTokenProvider implements the portal's resource-owner password grant.
type passwordTokenProvider struct {
	username string
	password string
	tokenURL string
}

func (p *passwordTokenProvider) Token(client *http.Client) (*Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", p.username)
	form.Set("password", p.password)
	form.Set("scope", tokenScope)
	form.Set("client_id", tokenClientID)

	req, err := http.NewRequest(http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: "token response did not contain access_token"}
	}

	return &Tokens{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    accessTokenExpiry(tr.AccessToken, tr.ExpiresIn),
	}, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// accessTokenExpiry prefers the exp claim embedded in the access token. The
// signature is never verified; the claim only schedules re-authorization.
// expires_in is the fallback for opaque tokens.
func accessTokenExpiry(accessToken string, expiresIn int64) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	if expiresIn <= 0 {
		return time.Now()
	}
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}
