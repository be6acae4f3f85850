// Package session owns the single browser session driving WhatsApp Web:
// launching it on the persistent profile, waiting for the chat list,
// detecting a lost session and tearing everything down.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"wisher/internal/config"
	"wisher/internal/retry"
)

var (
	ErrElementNotFound = errors.New("element not found")
	ErrNoSession       = errors.New("no live browser session")
)

type Key int

const (
	KeyEnter Key = iota
	KeyArrowDown
)

func (k Key) String() string {
	switch k {
	case KeyEnter:
		return "Enter"
	case KeyArrowDown:
		return "ArrowDown"
	}
	return fmt.Sprintf("Key(%d)", int(k))
}

// Page is the handful of DOM primitives the bot needs. Locators are
// XPath expressions.
type Page interface {
	Has(xpath string) (bool, error)
	Click(xpath string) error
	// Input clears the element and types text into it.
	Input(xpath, text string) error
	// Type inserts text at the current focus.
	Type(text string) error
	Text(xpath string) (string, error)
	Press(keys ...Key) error
	ShiftEnter() error
	Reload() error
	Alive() bool
	Close() error
}

type Driver interface {
	Open(ctx context.Context, url string) (Page, error)
	// KillAll kills every browser process bound to the profile,
	// including ones left behind by earlier runs.
	KillAll(ctx context.Context) error
}

// ReadyOutcome describes how the chat list was reached.
type ReadyOutcome struct {
	Refreshes   int
	SawLoading  bool
	WaitedPolls int
}

type Manager struct {
	driver   Driver
	url      string
	locators config.PageConfig
	gate     retry.Gate
	clock    retry.Clock
	log      logrus.FieldLogger

	page Page
}

func NewManager(driver Driver, url string, locators config.PageConfig, gate retry.Gate, clock retry.Clock, log logrus.FieldLogger) *Manager {
	if clock == nil {
		clock = retry.SystemClock{}
	}
	return &Manager{
		driver:   driver,
		url:      url,
		locators: locators,
		gate:     gate,
		clock:    clock,
		log:      log,
	}
}

// Page returns the live page or ErrNoSession.
func (m *Manager) Page() (Page, error) {
	if m.page == nil {
		return nil, ErrNoSession
	}
	return m.page, nil
}

// Close ends the current session. The handle is invalid afterwards.
func (m *Manager) Close() {
	if m.page == nil {
		return
	}
	if err := m.page.Close(); err != nil {
		m.log.Debugf("Closing browser: %v", err)
	}
	m.page = nil
	m.log.Info("Browser closed")
}

// HardReset closes the session and kills any stray browser for the
// profile. Failures are logged and swallowed.
func (m *Manager) HardReset(ctx context.Context) {
	m.Close()
	if err := m.driver.KillAll(ctx); err != nil {
		m.log.Debugf("Killing stray browsers: %v", err)
	}
	_ = m.clock.Sleep(ctx, config.HardResetSettle)
}

// Launch hard-resets and opens WhatsApp Web, retrying every 5s until it
// succeeds or ctx ends.
func (m *Manager) Launch(ctx context.Context) (Page, error) {
	policy := retry.Policy{
		Name:     "open WhatsApp Web",
		Interval: config.LaunchRetryDelay,
		Clock:    m.clock,
		Log:      m.log,
	}
	err := policy.Do(ctx, func(ctx context.Context) error {
		m.HardReset(ctx)
		page, err := m.driver.Open(ctx, m.url)
		if err != nil {
			return err
		}
		m.page = page
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("Entered WhatsApp Web")
	return m.page, nil
}

// Open launches and blocks until the chat list is showing.
func (m *Manager) Open(ctx context.Context) (Page, error) {
	page, err := m.Launch(ctx)
	if err != nil {
		return nil, err
	}
	outcome, err := m.AwaitReady(ctx)
	if err != nil {
		return nil, err
	}
	m.log.WithField("refreshes", outcome.Refreshes).Info("WhatsApp Web is ready")
	return page, nil
}

// AwaitReady polls for the chat list for ReadyWait. When it has not
// appeared, a visible "Loading your chats" means keep waiting, checking
// the network every few polls and refreshing if it is down. No loading
// text means refresh and start over.
func (m *Manager) AwaitReady(ctx context.Context) (ReadyOutcome, error) {
	var outcome ReadyOutcome
	page, err := m.Page()
	if err != nil {
		return outcome, err
	}

	for {
		ready, err := m.WaitFor(ctx, m.locators.ChatListXPath, config.ReadyWait)
		if err != nil {
			return outcome, err
		}
		if ready {
			return outcome, nil
		}

		m.log.Info("120 seconds completed - checking for 'Loading your chats' status")
		loading, err := page.Has(m.locators.LoadingXPath)
		if err != nil {
			return outcome, err
		}

		if !loading {
			m.log.Info("'Loading your chats' not found - refreshing page")
			if err := m.refresh(ctx, page); err != nil {
				return outcome, err
			}
			outcome.Refreshes++
			continue
		}

		outcome.SawLoading = true
		restart, err := m.waitLoading(ctx, page, &outcome)
		if err != nil {
			return outcome, err
		}
		if !restart {
			return outcome, nil
		}
		outcome.Refreshes++
	}
}

// waitLoading returns restart=true when the network dropped and the page
// was refreshed.
func (m *Manager) waitLoading(ctx context.Context, page Page, outcome *ReadyOutcome) (bool, error) {
	for polls := 1; ; polls++ {
		loading, err := page.Has(m.locators.LoadingXPath)
		if err != nil {
			return false, err
		}
		if !loading {
			m.log.Info("'Loading your chats' disappeared - WhatsApp is ready")
			return false, nil
		}
		outcome.WaitedPolls++
		m.log.Debugf("Still loading... check %d", polls)

		if polls%config.ReadyLoadingRecheck == 0 && m.gate != nil && !m.gate.Probe(ctx) {
			m.log.Warn("Internet lost during loading - refreshing page")
			if err := m.refresh(ctx, page); err != nil {
				return false, err
			}
			return true, nil
		}
		if err := m.clock.Sleep(ctx, config.Poll); err != nil {
			return false, err
		}
	}
}

func (m *Manager) refresh(ctx context.Context, page Page) error {
	if err := page.Reload(); err != nil {
		return fmt.Errorf("refresh page: %w", err)
	}
	return m.clock.Sleep(ctx, config.RefreshSettle)
}

// IsAlive reports whether the session still answers. Any failure counts
// as lost.
func (m *Manager) IsAlive() bool {
	return m.page != nil && m.page.Alive()
}

// WaitFor polls every Poll until xpath is present or budget runs out.
// A zero budget checks once.
func (m *Manager) WaitFor(ctx context.Context, xpath string, budget time.Duration) (bool, error) {
	return m.poll(ctx, xpath, budget, true)
}

// WaitGone polls until xpath is absent or budget runs out, reporting
// whether it went away.
func (m *Manager) WaitGone(ctx context.Context, xpath string, budget time.Duration) (bool, error) {
	return m.poll(ctx, xpath, budget, false)
}

func (m *Manager) poll(ctx context.Context, xpath string, budget time.Duration, want bool) (bool, error) {
	page, err := m.Page()
	if err != nil {
		return false, err
	}
	deadline := m.clock.Now().Add(budget)
	for {
		has, err := page.Has(xpath)
		if err != nil {
			return false, err
		}
		if has == want {
			return true, nil
		}
		if !m.clock.Now().Before(deadline) {
			return false, nil
		}
		if err := m.clock.Sleep(ctx, config.Poll); err != nil {
			return false, err
		}
	}
}

// ClickWithin clicks xpath once it appears, giving up with
// ErrElementNotFound after budget.
func (m *Manager) ClickWithin(ctx context.Context, xpath string, budget time.Duration) error {
	found, err := m.WaitFor(ctx, xpath, budget)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w within %s: %s", ErrElementNotFound, budget, xpath)
	}
	return m.page.Click(xpath)
}

// ClickWithRefresh waits for xpath without a deadline, refreshing the
// page every ElementWait, then clicks it.
func (m *Manager) ClickWithRefresh(ctx context.Context, xpath string) error {
	page, err := m.Page()
	if err != nil {
		return err
	}
	since := m.clock.Now()
	for {
		has, err := page.Has(xpath)
		if err != nil {
			return err
		}
		if has {
			return page.Click(xpath)
		}
		if m.clock.Now().Sub(since) >= config.ElementWait {
			m.log.Info("Refreshing page after 120 seconds")
			if err := m.refresh(ctx, page); err != nil {
				return err
			}
			since = m.clock.Now()
			continue
		}
		if err := m.clock.Sleep(ctx, config.Poll); err != nil {
			return err
		}
	}
}
