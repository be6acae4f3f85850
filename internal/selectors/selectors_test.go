package selectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"golang.org/x/oauth2"

	"wisher/internal/logging"
	"wisher/internal/retry"
)

type flakyStore struct {
	failures int
	values   map[string]string
	calls    int
}

func (s *flakyStore) Fetch(ctx context.Context, name string) (string, error) {
	s.calls++
	if s.calls <= s.failures {
		return "", fmt.Errorf("%w: connection refused", ErrSelectorUnavailable)
	}
	v, ok := s.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSelectorUnavailable, name)
	}
	return v, nil
}

func testPolicy(clock retry.Clock) retry.Policy {
	return retry.Policy{
		Interval: time.Second,
		Clock:    clock,
		Log:      logging.Discard(),
	}
}

func TestDirectoryRetriesUntilAvailable(t *testing.T) {
	clock := retry.NewManualClock(time.Unix(0, 0))
	store := &flakyStore{failures: 3, values: map[string]string{"Xpath001": "//span[@title='x']"}}
	dir := NewDirectory(store, testPolicy(clock), logging.Discard())

	got, err := dir.Resolve(context.Background(), OpenChat)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "//span[@title='x']" {
		t.Errorf("Unexpected selector %q", got)
	}
	if store.calls != 4 {
		t.Errorf("Expected 4 fetches, got %d", store.calls)
	}
	if clock.Slept() != 3*time.Second {
		t.Errorf("Expected 3s of retry waits, got %v", clock.Slept())
	}
}

func TestDirectoryFetchesFreshEachTime(t *testing.T) {
	store := &flakyStore{values: map[string]string{"Xpath002": "//old"}}
	dir := NewDirectory(store, testPolicy(retry.NewManualClock(time.Unix(0, 0))), logging.Discard())
	ctx := context.Background()

	if _, err := dir.Resolve(ctx, MessageInput); err != nil {
		t.Fatal(err)
	}
	store.values["Xpath002"] = "//new"

	got, err := dir.Resolve(ctx, MessageInput)
	if err != nil {
		t.Fatal(err)
	}
	if got != "//new" {
		t.Errorf("Expected updated selector, got %q", got)
	}
}

func TestDirectoryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := &flakyStore{failures: 100}
	dir := NewDirectory(store, testPolicy(retry.NewManualClock(time.Unix(0, 0))), logging.Discard())

	if _, err := dir.Resolve(ctx, NoResults); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	defer client.Close()

	store := NewRedisStore(client, "WhatsApp/Xpath")
	ctx := context.Background()

	if err := store.Put(ctx, "Xpath003", "//span[@data-icon='msg-time']"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Fetch(ctx, "Xpath003")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got != "//span[@data-icon='msg-time']" {
		t.Errorf("Unexpected value %q", got)
	}

	if _, err := store.Fetch(ctx, "Xpath004"); !errors.Is(err, ErrSelectorUnavailable) {
		t.Errorf("Expected ErrSelectorUnavailable for missing key, got %v", err)
	}

	mr.Close()
	if _, err := store.Fetch(ctx, "Xpath003"); !errors.Is(err, ErrSelectorUnavailable) {
		t.Errorf("Expected ErrSelectorUnavailable when server is down, got %v", err)
	}
}

func TestFirebaseStoreFetch(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"Xpath001":"//span[@title]","Xpath002":"//footer//div[@contenteditable]"}`)
	}))
	defer server.Close()

	store := NewFirebaseStore(server.URL, "WhatsApp/Xpath", "")
	store.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})

	got, err := store.Fetch(context.Background(), "Xpath002")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got != "//footer//div[@contenteditable]" {
		t.Errorf("Unexpected value %q", got)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Expected bearer token, got %q", gotAuth)
	}
	if gotPath != "/WhatsApp/Xpath.json" {
		t.Errorf("Unexpected request path %q", gotPath)
	}

	if _, err := store.Fetch(context.Background(), "Xpath004"); !errors.Is(err, ErrSelectorUnavailable) {
		t.Errorf("Expected ErrSelectorUnavailable for missing key, got %v", err)
	}
}

func TestFirebaseStoreHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer server.Close()

	store := NewFirebaseStore(server.URL, "WhatsApp/Xpath", "")
	store.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"})

	if _, err := store.Fetch(context.Background(), "Xpath001"); !errors.Is(err, ErrSelectorUnavailable) {
		t.Errorf("Expected ErrSelectorUnavailable, got %v", err)
	}
}

func TestFirebaseStoreMissingCredentials(t *testing.T) {
	store := NewFirebaseStore("", "WhatsApp/Xpath", filepath.Join(t.TempDir(), "missing.json"))

	if _, err := store.Fetch(context.Background(), "Xpath001"); !errors.Is(err, ErrSelectorUnavailable) {
		t.Errorf("Expected ErrSelectorUnavailable, got %v", err)
	}
}

func TestFirebaseStoreDerivesURLFromProject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, []byte(`{"project_id":"birthday-xpath"}`), 0600); err != nil {
		t.Fatal(err)
	}

	store := NewFirebaseStore("", "WhatsApp/Xpath", path)
	store.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"})

	if err := store.init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if store.DatabaseURL != "https://birthday-xpath-default-rtdb.firebaseio.com" {
		t.Errorf("Unexpected database URL %q", store.DatabaseURL)
	}
}

func TestEscapePath(t *testing.T) {
	if got := escapePath("Xpath001"); got != "Xpath001" {
		t.Errorf("Expected plain name unchanged, got %q", got)
	}
	if got := escapePath("a.b"); got != `a\.b` {
		t.Errorf("Expected dot escaped, got %q", got)
	}
}
