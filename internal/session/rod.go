package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
)

// Timeout for a single element lookup once Has has reported it present.
const lookupTimeout = 10 * time.Second

var browserNames = []string{"chrome", "chromium", "chromedriver", "google chrome"}

type RodOptions struct {
	ProfilePath string
	Bin         string
	Headless    bool
}

// RodDriver runs Chrome over the DevTools protocol.
type RodDriver struct {
	opts RodOptions
	log  logrus.FieldLogger
}

func NewRodDriver(opts RodOptions, log logrus.FieldLogger) *RodDriver {
	return &RodDriver{opts: opts, log: log}
}

func (d *RodDriver) Open(ctx context.Context, url string) (Page, error) {
	// Disable leakless mode on Windows to prevent deadlock
	// See: https://github.com/go-rod/rod/issues/853
	useLeakless := runtime.GOOS != "windows"

	l := launcher.New().
		Context(ctx).
		Leakless(useLeakless).
		Headless(d.opts.Headless).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("start-maximized")

	// Must be set before Bin() to be applied.
	if d.opts.ProfilePath != "" {
		l = l.UserDataDir(d.opts.ProfilePath)
	}

	if d.opts.Bin != "" {
		l = l.Bin(d.opts.Bin)
	} else if chromePath, ok := launcher.LookPath(); ok {
		l = l.Bin(chromePath)
		d.log.Debugf("Using system Chrome at %s", chromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "ProcessSingleton") || strings.Contains(msg, "SingletonLock") {
			return nil, fmt.Errorf("browser profile %s is in use by another Chrome: %w", d.opts.ProfilePath, err)
		}
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}

	if err := page.Navigate(url); err != nil {
		browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		d.log.Debugf("Page load wait: %v", err)
	}

	return &rodPage{browser: browser, page: page, launcher: l, log: d.log}, nil
}

// KillAll kills Chrome processes started on our profile. Without a
// profile every Chrome process is a candidate.
func (d *RodDriver) KillAll(ctx context.Context) error {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !isBrowserName(name) {
			continue
		}
		if d.opts.ProfilePath != "" {
			cmdline, err := p.CmdlineWithContext(ctx)
			if err != nil || !strings.Contains(cmdline, d.opts.ProfilePath) {
				continue
			}
		}
		if err := p.KillWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kill %s (%d): %w", name, p.Pid, err))
			continue
		}
		d.log.Debugf("Killed stray %s (%d)", name, p.Pid)
	}
	return errors.Join(errs...)
}

func isBrowserName(name string) bool {
	name = strings.ToLower(name)
	for _, b := range browserNames {
		if strings.Contains(name, b) {
			return true
		}
	}
	return false
}

type rodPage struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	log      logrus.FieldLogger
}

func (p *rodPage) element(xpath string) (*rod.Element, error) {
	el, err := p.page.Timeout(lookupTimeout).ElementX(xpath)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrElementNotFound, xpath)
		}
		return nil, err
	}
	return el.CancelTimeout(), nil
}

func (p *rodPage) Has(xpath string) (bool, error) {
	has, _, err := p.page.HasX(xpath)
	return has, err
}

func (p *rodPage) Click(xpath string) error {
	el, err := p.element(xpath)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Input(xpath, text string) error {
	if err := p.Click(xpath); err != nil {
		return err
	}
	err := p.page.KeyActions().
		Press(input.ControlLeft).Type(input.KeyA).Release(input.ControlLeft).
		Type(input.Backspace).
		Do()
	if err != nil {
		return fmt.Errorf("clear field: %w", err)
	}
	return p.page.InsertText(text)
}

func (p *rodPage) Type(text string) error {
	return p.page.InsertText(text)
}

func (p *rodPage) Text(xpath string) (string, error) {
	el, err := p.element(xpath)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (p *rodPage) Press(keys ...Key) error {
	for _, k := range keys {
		var key input.Key
		switch k {
		case KeyEnter:
			key = input.Enter
		case KeyArrowDown:
			key = input.ArrowDown
		default:
			return fmt.Errorf("unsupported key %s", k)
		}
		if err := p.page.Keyboard.Type(key); err != nil {
			return err
		}
	}
	return nil
}

func (p *rodPage) ShiftEnter() error {
	return p.page.KeyActions().Press(input.ShiftLeft).Type(input.Enter).Do()
}

func (p *rodPage) Reload() error {
	return p.page.Reload()
}

func (p *rodPage) Alive() bool {
	if _, err := p.browser.Version(); err != nil {
		p.log.Debugf("Browser version check failed: %v", err)
		return false
	}
	if _, err := p.page.Info(); err != nil {
		p.log.Debugf("Page info check failed: %v", err)
		return false
	}
	return true
}

// Close leaves the profile directory in place so the WhatsApp login
// survives.
func (p *rodPage) Close() error {
	var errs []error
	if err := p.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	p.launcher.Kill()
	return errors.Join(errs...)
}
