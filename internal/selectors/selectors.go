// Package selectors resolves the WhatsApp Web element locators kept in a
// remote directory, so they can be edited without redeploying the bot.
package selectors

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"wisher/internal/retry"
)

var ErrSelectorUnavailable = errors.New("selector unavailable")

type Key string

const (
	OpenChat         Key = "Xpath001"
	MessageInput     Key = "Xpath002"
	PendingIndicator Key = "Xpath003"
	NoResults        Key = "Xpath004"
)

func (k Key) Description() string {
	switch k {
	case OpenChat:
		return "open chat by search result"
	case MessageInput:
		return "message input box"
	case PendingIndicator:
		return "message pending indicator"
	case NoResults:
		return "no results indicator"
	}
	return string(k)
}

// All lists the keys in directory order.
func All() []Key {
	return []Key{OpenChat, MessageInput, PendingIndicator, NoResults}
}

// Store fetches a single named locator. Implementations return an error
// wrapping ErrSelectorUnavailable when the backend cannot be reached or
// the name is absent.
type Store interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// Directory fetches selectors fresh on every Resolve and remembers the
// last value seen for each key.
type Directory struct {
	store  Store
	policy retry.Policy
	log    logrus.FieldLogger

	mu    sync.Mutex
	cache map[Key]string
}

// NewDirectory wraps store with the retry policy used for every lookup.
// The policy should be unbounded and gated on connectivity.
func NewDirectory(store Store, policy retry.Policy, log logrus.FieldLogger) *Directory {
	return &Directory{
		store:  store,
		policy: policy,
		log:    log,
		cache:  make(map[Key]string),
	}
}

func (d *Directory) Resolve(ctx context.Context, key Key) (string, error) {
	p := d.policy
	p.Name = "fetch WhatsApp " + string(key)

	value, err := retry.Value(ctx, p, func(ctx context.Context) (string, error) {
		return d.store.Fetch(ctx, string(key))
	})
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	previous, seen := d.cache[key]
	d.cache[key] = value
	d.mu.Unlock()

	if seen && previous != value {
		d.log.WithField("selector", key).Info("Selector changed in the directory since last fetch")
	}
	d.log.Debugf("WhatsApp %s fetched from database", key)
	return value, nil
}
