package config

import (
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Fixed timings. These are deliberately not part of the YAML file.
const (
	ElementWait         = 120 * time.Second
	DeliveryWait        = 120 * time.Second
	ReadyWait           = 120 * time.Second
	StabilitySettle     = 10 * time.Second
	NetworkSettle       = 5 * time.Second
	RefreshSettle       = 5 * time.Second
	RestartSettle       = 5 * time.Second
	HardResetSettle     = 2 * time.Second
	Poll                = 1 * time.Second
	KeySettle           = 1 * time.Second
	LaunchRetryDelay    = 5 * time.Second
	SheetRetryDelay     = 5 * time.Second
	SelectorRetryDelay  = 1 * time.Second
	InputRetryDelay     = 2 * time.Second
	ReadyLoadingRecheck = 5
	TypeAttempts        = 3
	SpamLimit           = 100
)

type Config struct {
	DataDir string `yaml:"data_dir"`

	BrowserProfilePath string `yaml:"browser_profile_path"`
	BrowserBin         string `yaml:"browser_bin"`
	WhatsAppURL        string `yaml:"whatsapp_url"`
	Headless           bool   `yaml:"headless"`

	// Number of extra delivery-confirmation rounds (close, reopen, re-poll)
	// after the first 120s wait runs out.
	ContactConfirmRetries int `yaml:"contact_confirm_retries"`
	ReportConfirmRetries  int `yaml:"report_confirm_retries"`

	DebugMode bool `yaml:"debug_mode"`

	Files        FilesConfig        `yaml:"files"`
	Spreadsheet  SpreadsheetConfig  `yaml:"spreadsheet"`
	Selectors    SelectorConfig     `yaml:"selectors"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Page         PageConfig         `yaml:"page"`
}

type FilesConfig struct {
	ContactFile      string `yaml:"contact_file"`
	WishesFile       string `yaml:"wishes_file"`
	ReportFile       string `yaml:"report_file"`
	ReportNumberFile string `yaml:"report_number_file"`
	LockFile         string `yaml:"lock_file"`
}

type SpreadsheetConfig struct {
	// Backend is "sheets" (Google Sheets API) or "sqlite" (local workbook).
	Backend         string `yaml:"backend"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"`
	SQLitePath      string `yaml:"sqlite_path"`
	BirthdayTab     string `yaml:"birthday_tab"`
	WishesTab       string `yaml:"wishes_tab"`
	SentLogTab      string `yaml:"sent_log_tab"`
}

type SelectorConfig struct {
	// Backend is "firebase" (Realtime Database REST) or "redis".
	Backend         string `yaml:"backend"`
	CredentialsFile string `yaml:"credentials_file"`
	DatabaseURL     string `yaml:"database_url"`
	Namespace       string `yaml:"namespace"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
}

type ConnectivityConfig struct {
	// Method is "icmp" or "http".
	Method  string `yaml:"method"`
	Host    string `yaml:"host"`
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout_seconds"`
}

type PageConfig struct {
	ChatListXPath     string `yaml:"chat_list_xpath"`
	LoadingXPath      string `yaml:"loading_xpath"`
	SearchFieldXPath  string `yaml:"search_field_xpath"`
	MessageFieldXPath string `yaml:"message_field_xpath"`
}

func DefaultConfig() *Config {
	dataDir := UserDataDir()
	botDir := filepath.Join(dataDir, "WhatsApp birthday wisher")

	return &Config{
		DataDir:               dataDir,
		BrowserProfilePath:    filepath.Join(dataDir, "browser-profile"),
		BrowserBin:            "",
		WhatsAppURL:           "https://web.whatsapp.com/",
		Headless:              false,
		ContactConfirmRetries: 1,
		ReportConfirmRetries:  1,
		DebugMode:             false,
		Files: FilesConfig{
			ContactFile:      filepath.Join(botDir, "Today birthday list contact"),
			WishesFile:       filepath.Join(botDir, "Wishes"),
			ReportFile:       filepath.Join(botDir, "WhatsApp report"),
			ReportNumberFile: filepath.Join(dataDir, "Report number"),
			LockFile:         filepath.Join(dataDir, "wisher.lock"),
		},
		Spreadsheet: SpreadsheetConfig{
			Backend:         "sheets",
			CredentialsFile: filepath.Join(botDir, "spread sheet access key.json"),
			SQLitePath:      filepath.Join(botDir, "workbook.sqlite"),
			BirthdayTab:     "Birthday list",
			WishesTab:       "Wishes",
			SentLogTab:      "Sent message",
		},
		Selectors: SelectorConfig{
			Backend:         "firebase",
			CredentialsFile: filepath.Join(dataDir, "database access key.json"),
			Namespace:       "WhatsApp/Xpath",
			RedisAddr:       "localhost:6379",
		},
		Connectivity: ConnectivityConfig{
			Method:  "icmp",
			Host:    "8.8.8.8",
			URL:     "https://www.google.com",
			Timeout: 3,
		},
		Page: PageConfig{
			ChatListXPath:     "//div[@aria-label='Chat list']",
			LoadingXPath:      "//*[contains(text(), 'Loading your chats')]",
			SearchFieldXPath:  "//div[@contenteditable='true']",
			MessageFieldXPath: "//div[@contenteditable='true'][@data-tab='10']",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return config, config.ensureDirs()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, config.ensureDirs()
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) ensureDirs() error {
	dirs := []string{
		c.BrowserProfilePath,
		filepath.Dir(c.Files.ContactFile),
		filepath.Dir(c.Files.WishesFile),
		filepath.Dir(c.Files.ReportFile),
		filepath.Dir(c.Files.LockFile),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// ConnectivityTimeout returns the single-probe timeout.
func (c *Config) ConnectivityTimeout() time.Duration {
	if c.Connectivity.Timeout <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Connectivity.Timeout) * time.Second
}

// UserDataDir is the default root for the profile, working files and lock.
func UserDataDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return "./wisher-data"
	}
	return filepath.Join(home, ".wisher")
}

// DefaultPath is where the config file lives when --config is not given.
func DefaultPath() string {
	return filepath.Join(UserDataDir(), "config.yaml")
}
