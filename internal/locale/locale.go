// Package locale holds the texts the bot sends over WhatsApp, so they can
// be translated without touching the controller.
package locale

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const Fallback = "en_US"

// Keys
const (
	NoticeNoBirthday = "notice_no_birthday"
	NoticeSpamLimit  = "notice_spam_limit"
	Report           = "report"
)

//go:embed lang/en_US.yaml
var fallbackYAML []byte

type Locale struct {
	translations map[string]string
	locale       string
}

var (
	mu           sync.RWMutex
	globalLocale *Locale
)

func init() {
	l, err := parse(Fallback, fallbackYAML)
	if err != nil {
		panic(err)
	}
	globalLocale = l
}

// InitLocale loads the system locale from <dir>/lang, keeping the
// embedded en_US table when no file matches.
func InitLocale(dir string) (string, error) {
	locale := DetectSystemLocale()
	if locale == Fallback {
		return locale, nil
	}

	l, err := LoadLocale(dir, locale)
	if err != nil {
		return Fallback, fmt.Errorf("locale %s unavailable, using %s: %w", locale, Fallback, err)
	}

	mu.Lock()
	globalLocale = l
	mu.Unlock()
	return locale, nil
}

// DetectSystemLocale reads LANG, LC_ALL and LC_MESSAGES in that order.
func DetectSystemLocale() string {
	for _, name := range []string{"LANG", "LC_ALL", "LC_MESSAGES"} {
		if locale := os.Getenv(name); locale != "" {
			parts := strings.Split(locale, ".")
			if parts[0] != "" && parts[0] != "C" && parts[0] != "POSIX" {
				return parts[0]
			}
		}
	}

	if runtime.GOOS == "windows" {
		if locale := os.Getenv("LANG"); locale != "" {
			return locale
		}
	}

	return Fallback
}

// LoadLocale reads <dir>/lang/<locale>.yaml. Keys missing from the file
// fall back to the embedded en_US text.
func LoadLocale(dir, locale string) (*Locale, error) {
	localeFile := filepath.Join(dir, "lang", locale+".yaml")

	data, err := os.ReadFile(localeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read locale file %s: %w", localeFile, err)
	}

	l, err := parse(locale, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse locale file %s: %w", localeFile, err)
	}

	base, _ := parse(Fallback, fallbackYAML)
	for k, v := range base.translations {
		if _, ok := l.translations[k]; !ok {
			l.translations[k] = v
		}
	}
	return l, nil
}

func parse(locale string, data []byte) (*Locale, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, err
	}
	if translations == nil {
		translations = make(map[string]string)
	}
	return &Locale{translations: translations, locale: locale}, nil
}

// T translates key, formatting params fmt.Sprintf style. Unknown keys
// come back unchanged.
func (l *Locale) T(key string, params ...interface{}) string {
	translation, ok := l.translations[key]
	if !ok {
		return key
	}
	if len(params) > 0 {
		return fmt.Sprintf(translation, params...)
	}
	return translation
}

func (l *Locale) Code() string {
	return l.locale
}

// T translates with the active locale.
func T(key string, params ...interface{}) string {
	mu.RLock()
	l := globalLocale
	mu.RUnlock()
	return l.T(key, params...)
}

// GetLocale returns the active locale code.
func GetLocale() string {
	mu.RLock()
	defer mu.RUnlock()
	return globalLocale.locale
}

// Reset restores the embedded en_US table.
func Reset() {
	l, _ := parse(Fallback, fallbackYAML)
	mu.Lock()
	globalLocale = l
	mu.Unlock()
}
