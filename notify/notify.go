// Package notify delivers operator alerts out of band. Delivery failures are
// reported to the caller, which logs them; they never stop a loop.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// DefaultEndpoint is the Pushover message API.
const DefaultEndpoint = "https://api.pushover.net/1/messages.json"

// Environment variables holding the Pushover credentials.
const (
	EnvUserKey  = "PUSHOVER_USER_KEY"
	EnvAPIToken = "PUSHOVER_API_TOKEN"
)

// ErrNotConfigured is returned by FromEnv when credentials are missing.
var ErrNotConfigured = errors.New("pushover credentials not configured")

// Notifier delivers a plain text message.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Nop drops every message after logging it.
type Nop struct{}

func (Nop) Notify(_ context.Context, message string) error {
	log.Info().Str("message", message).Msg("[Notify] notifier disabled, message dropped")
	return nil
}

// Pushover posts messages to the Pushover API.
type Pushover struct {
	UserKey  string
	APIToken string
	Endpoint string
	Client   *http.Client
}

// NewPushover returns a client for the default endpoint.
func NewPushover(userKey, apiToken string) *Pushover {
	return &Pushover{
		UserKey:  userKey,
		APIToken: apiToken,
		Endpoint: DefaultEndpoint,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// FromEnv builds a Pushover client from the environment, after loading the
// given .env files (missing files are ignored).
func FromEnv(envFiles ...string) (*Pushover, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			log.Debug().Str("file", f).Msg("[Notify] no env file, using environment variables")
		}
	}
	user, token := os.Getenv(EnvUserKey), os.Getenv(EnvAPIToken)
	if user == "" || token == "" {
		return nil, ErrNotConfigured
	}
	return NewPushover(user, token), nil
}

// Notify implements Notifier.
func (p *Pushover) Notify(ctx context.Context, message string) error {
	form := url.Values{
		"token":   {p.APIToken},
		"user":    {p.UserKey},
		"message": {message},
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send pushover notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("pushover returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	log.Info().Msg("[Notify] pushover notification sent")
	return nil
}
