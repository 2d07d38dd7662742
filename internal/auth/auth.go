// Package auth acquires the streaming access token with the OAuth2
// client-credentials grant.
package auth

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultScope is the scope requested from the token endpoint.
const DefaultScope = "oob"

// ErrToken is wrapped by every token acquisition failure.
var ErrToken = errors.New("acquire access token")

// TokenError reports a rejected token request.
type TokenError struct {
	StatusCode int    // HTTP status, 0 if the endpoint was unreachable
	Body       string // Response body as returned by the endpoint
	Err        error
}

func (e *TokenError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("token request: %v", e.Err)
}

func (e *TokenError) Unwrap() []error {
	return []error{ErrToken, e.Err}
}

// Credentials holds the application key pair issued by the provider.
type Credentials struct {
	AppKey    string
	AppSecret string
}

// LoadCredentials validates and returns credentials.
func LoadCredentials(appKey, appSecret string) (*Credentials, error) {
	if appKey == "" {
		return nil, fmt.Errorf("app key is required")
	}
	if appSecret == "" {
		return nil, fmt.Errorf("app secret is required")
	}
	return &Credentials{AppKey: appKey, AppSecret: appSecret}, nil
}

// Config configures the token request.
type Config struct {
	TokenURL           string
	Scope              string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// FetchToken performs the client-credentials grant. The app key and secret
// travel as the appkey / appsecretkey form fields.
func FetchToken(ctx context.Context, cfg Config, creds *Credentials) (*oauth2.Token, error) {
	if creds == nil {
		return nil, &TokenError{Err: errors.New("missing credentials")}
	}
	scope := cfg.Scope
	if scope == "" {
		scope = DefaultScope
	}

	cc := clientcredentials.Config{
		TokenURL: cfg.TokenURL,
		Scopes:   []string{scope},
		EndpointParams: url.Values{
			"appkey":       {creds.AppKey},
			"appsecretkey": {creds.AppSecret},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}

	hc := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)

	tok, err := cc.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return nil, &TokenError{StatusCode: re.Response.StatusCode, Body: string(re.Body), Err: err}
		}
		return nil, &TokenError{Err: err}
	}
	return tok, nil
}
