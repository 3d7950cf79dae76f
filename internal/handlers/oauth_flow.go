package handlers

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"cadence/internal/authpath"
	"cadence/internal/security"
	"cadence/internal/service"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	googleJWKSURL  = "https://www.googleapis.com/oauth2/v3/certs"
)

// OAuthHandler runs the Google sign-in flow. A successful provider
// callback does not mint a session directly; it mints a one-time code and
// sends the browser through /auth/callback like every other sign-in flow.
type OAuthHandler struct {
	authHandler *AuthHandler
	config      *oauth2.Config
	baseURL     string
}

// NewOAuthHandler creates a Google OAuth handler. Empty credentials yield a
// handler whose start endpoint reports the provider as not configured.
func NewOAuthHandler(authHandler *AuthHandler, clientID, clientSecret, baseURL string) *OAuthHandler {
	return &OAuthHandler{
		authHandler: authHandler,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"openid", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  googleAuthURL,
				TokenURL: googleTokenURL,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Configured reports whether Google credentials are present
func (h *OAuthHandler) Configured() bool {
	return h.config.ClientID != "" && h.config.ClientSecret != ""
}

// Start initiates the Google OAuth flow
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.Configured() {
		h.authHandler.redirectToLoginWithError(w, r, "Google sign-in is not configured.", "")
		return
	}

	state := security.GenerateSessionID()
	nonce := security.GenerateSessionID()

	http.SetCookie(w, security.CreateTempCookie(r, "oauth_state", state, 10*time.Minute))
	http.SetCookie(w, security.CreateTempCookie(r, "oauth_nonce", nonce, 10*time.Minute))

	if next := authpath.ToSafeInternalPath(r.URL.Query().Get("next"), ""); next != "" {
		http.SetCookie(w, security.CreateTempCookie(r, "oauth_next", next, 10*time.Minute))
	}

	config := *h.config
	config.RedirectURL = h.redirectURL(r)

	authURL := config.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("nonce", nonce),
	)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// ProviderCallback handles the redirect back from Google. On success it
// forwards to /auth/callback with a freshly minted one-time code.
func (h *OAuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	if !h.Configured() {
		h.authHandler.redirectToLoginWithError(w, r, "Google sign-in is not configured.", "")
		return
	}

	next := ""
	if cookie, err := r.Cookie("oauth_next"); err == nil {
		next = authpath.ToSafeInternalPath(cookie.Value, "")
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		h.clearTempCookies(w, r)
		h.authHandler.redirectToLoginWithError(w, r, fallbackAuthErrorMessage, next)
		return
	}

	nonce := ""
	if cookie, err := r.Cookie("oauth_nonce"); err == nil {
		nonce = cookie.Value
	}

	h.clearTempCookies(w, r)

	if code == "" {
		h.authHandler.redirectToLoginWithError(w, r, fallbackAuthErrorMessage, next)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	config := *h.config
	config.RedirectURL = h.redirectURL(r)

	token, err := config.Exchange(ctx, code)
	if err != nil {
		h.authHandler.redirectToLoginWithError(w, r, fallbackAuthErrorMessage, next)
		return
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		h.authHandler.redirectToLoginWithError(w, r, fallbackAuthErrorMessage, next)
		return
	}

	claims, err := parseGoogleIDToken(ctx, idToken, config.ClientID, nonce)
	if err != nil {
		h.authHandler.redirectToLoginWithError(w, r, fallbackAuthErrorMessage, next)
		return
	}

	user, err := h.authHandler.authService.OAuthLogin("google", claims.Subject, claims.Email)
	if err != nil {
		message := "Something went wrong. Please try again."
		if errors.Is(err, service.ErrEmailTaken) {
			message = "That email is already linked to a different sign-in method."
		}
		h.authHandler.redirectToLoginWithError(w, r, message, next)
		return
	}

	oneTimeCode, err := h.authHandler.authService.CreateOAuthCode(user.ID)
	if err != nil {
		h.authHandler.redirectToLoginWithError(w, r, "Something went wrong. Please try again.", next)
		return
	}

	values := url.Values{"code": []string{oneTimeCode}}
	if next != "" {
		values.Set("next", next)
	}
	http.Redirect(w, r, "/auth/callback?"+values.Encode(), http.StatusFound)
}

func (h *OAuthHandler) redirectURL(r *http.Request) string {
	baseURL := h.baseURL
	if baseURL == "" {
		scheme := "http"
		if security.IsSecureRequest(r) {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	return baseURL + "/auth/google/callback"
}

func (h *OAuthHandler) clearTempCookies(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, security.CreateDeleteCookie(r, "oauth_state"))
	http.SetCookie(w, security.CreateDeleteCookie(r, "oauth_nonce"))
	http.SetCookie(w, security.CreateDeleteCookie(r, "oauth_next"))
}

type googleTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Nonce         string `json:"nonce"`
}

type googleParsedClaims struct {
	Subject string
	Email   string
}

func parseGoogleIDToken(ctx context.Context, idToken, clientID, nonce string) (googleParsedClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	claims := &googleTokenClaims{}

	parsedToken, err := parser.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing key id")
		}
		return fetchGooglePublicKey(ctx, kid)
	})
	if err != nil || !parsedToken.Valid {
		return googleParsedClaims{}, errors.New("invalid Google token")
	}

	if claims.Issuer != "https://accounts.google.com" && claims.Issuer != "accounts.google.com" {
		return googleParsedClaims{}, errors.New("invalid Google issuer")
	}
	if !audienceContains(claims.Audience, clientID) {
		return googleParsedClaims{}, errors.New("invalid Google audience")
	}
	if nonce != "" && claims.Nonce != "" && claims.Nonce != nonce {
		return googleParsedClaims{}, errors.New("invalid Google nonce")
	}
	if claims.Email == "" || !claims.EmailVerified {
		return googleParsedClaims{}, errors.New("Google email not verified")
	}

	return googleParsedClaims{
		Subject: claims.Subject,
		Email:   claims.Email,
	}, nil
}

func audienceContains(audience jwt.ClaimStrings, value string) bool {
	for _, entry := range audience {
		if entry == value {
			return true
		}
	}
	return false
}

type googleJWKS struct {
	Keys []googleJWK `json:"keys"`
}

type googleJWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func fetchGooglePublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, googleJWKSURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("failed to fetch Google public keys")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var jwks googleJWKS
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, err
	}

	for _, key := range jwks.Keys {
		if key.Kid != kid {
			continue
		}
		if key.Kty != "RSA" {
			return nil, errors.New("unexpected key type")
		}
		modulusBytes, err := base64.RawURLEncoding.DecodeString(key.N)
		if err != nil {
			return nil, err
		}
		exponentBytes, err := base64.RawURLEncoding.DecodeString(key.E)
		if err != nil {
			return nil, err
		}
		exponent := 0
		for _, b := range exponentBytes {
			exponent = exponent*256 + int(b)
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(modulusBytes),
			E: exponent,
		}, nil
	}

	return nil, errors.New("Google public key not found")
}
