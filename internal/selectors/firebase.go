package selectors

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var firebaseScopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

// FirebaseStore reads the locator object from a Firebase Realtime
// Database over its REST interface.
type FirebaseStore struct {
	DatabaseURL     string
	Namespace       string
	CredentialsFile string
	// TokenSource skips credential loading when set.
	TokenSource oauth2.TokenSource

	client *retryablehttp.Client
	mu     sync.Mutex
}

func NewFirebaseStore(databaseURL, namespace, credentialsFile string) *FirebaseStore {
	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second

	return &FirebaseStore{
		DatabaseURL:     strings.TrimRight(databaseURL, "/"),
		Namespace:       strings.Trim(namespace, "/"),
		CredentialsFile: credentialsFile,
		client:          client,
	}
}

// init loads the service account once. A failed attempt is retried on
// the next call.
func (s *FirebaseStore) init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TokenSource != nil && s.DatabaseURL != "" {
		return nil
	}

	data, err := os.ReadFile(s.CredentialsFile)
	if err != nil {
		return fmt.Errorf("read database access key: %w", err)
	}

	if s.DatabaseURL == "" {
		projectID := gjson.GetBytes(data, "project_id").String()
		if projectID == "" {
			return fmt.Errorf("database url not configured and access key has no project_id")
		}
		s.DatabaseURL = "https://" + projectID + "-default-rtdb.firebaseio.com"
	}

	if s.TokenSource == nil {
		creds, err := google.CredentialsFromJSON(ctx, data, firebaseScopes...)
		if err != nil {
			return fmt.Errorf("parse database access key: %w", err)
		}
		s.TokenSource = creds.TokenSource
	}
	return nil
}

func (s *FirebaseStore) Fetch(ctx context.Context, name string) (string, error) {
	if err := s.init(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSelectorUnavailable, err)
	}

	token, err := s.TokenSource.Token()
	if err != nil {
		return "", fmt.Errorf("%w: token: %v", ErrSelectorUnavailable, err)
	}

	url := s.DatabaseURL + "/" + s.Namespace + ".json"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSelectorUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSelectorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrSelectorUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d from %s", ErrSelectorUnavailable, resp.StatusCode, s.Namespace)
	}

	value := gjson.GetBytes(body, escapePath(name))
	if !value.Exists() || value.String() == "" {
		return "", fmt.Errorf("%w: %s not found in database", ErrSelectorUnavailable, name)
	}
	return value.String(), nil
}

func escapePath(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
