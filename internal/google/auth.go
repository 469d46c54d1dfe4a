package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/sheets/v4"
)

const (
	credentialsFile = "credentials.json"
	oobRedirectURL  = "urn:ietf:wg:oauth:2.0:oob"
)

// Scopes requested for reading the roster and writing events.
var Scopes = []string{
	sheets.SpreadsheetsReadonlyScope,
	calendar.CalendarEventsScope,
}

// Credentials selects how the HTTP client authenticates.
// A service account takes precedence over the OAuth token flow.
type Credentials struct {
	ServiceAccountJSON string
	ClientID           string
	ClientSecret       string
	Account            string // token-<Account>.json holds the OAuth token
}

// HTTPClient returns an authenticated client for the Google APIs.
func HTTPClient(ctx context.Context, creds Credentials) (*http.Client, error) {
	if creds.ServiceAccountJSON != "" {
		conf, err := google.JWTConfigFromJSON([]byte(creds.ServiceAccountJSON), Scopes...)
		if err != nil {
			return nil, fmt.Errorf("invalid service account credentials: %w", err)
		}
		return conf.Client(ctx), nil
	}

	config, err := OAuthConfig(creds.ClientID, creds.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}
	tokenFile := TokenFile(creds.Account)
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", creds.Account, err)
	}
	return config.Client(ctx, token), nil
}

// TokenFile returns the token path for an account name.
func TokenFile(account string) string {
	return "token-" + account + ".json"
}

// OAuthConfig reads credentials and returns an OAuth2 config.
// Client ID and secret take priority over a local credentials.json file.
func OAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  oobRedirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = oobRedirectURL
	return config, nil
}

// TokenFromWeb exchanges an authorization code for a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
