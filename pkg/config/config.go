// Package config loads circdesk settings from the environment.
//
// All settings have working defaults so a bare `circdesk` start against the
// default library instance is possible; a .env file or real environment
// variables override them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Settings holds every knob the application reads at startup.
type Settings struct {
	// Remote library system.
	BaseURL       string `validate:"required,url"`
	LoginPath     string `validate:"required"`
	WorkspacePath string `validate:"required"`

	// Optional stored credentials for automatic login. When empty the core
	// reports that manual login is required instead of submitting blindly.
	UserEmail string
	Password  string

	// Browser session.
	ProfileDir string `validate:"required"`
	Headless   bool

	// Circulation policy.
	MaxLoanDays    int `validate:"min=1"`
	DefaultResults int `validate:"min=1"`

	// Front end.
	ListenAddr string `validate:"required"`
	AdminPIN   string

	// Collaborators.
	DBPath            string `validate:"required"`
	LogFile           string
	SelectorFile      string
	StartupWebhookURL string
	EventsWebhookURL  string
}

// Load reads the optional env file, then the environment, and validates the
// result. A missing env file is not an error.
func Load(envFile string) (*Settings, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	s := &Settings{
		BaseURL:           strings.TrimRight(getenv("ELIBRA_BASE_URL", "https://coventry.elibra.kz"), "/"),
		LoginPath:         getenv("ELIBRA_LOGIN_PATH", "/auth/login"),
		WorkspacePath:     getenv("ELIBRA_WORKSPACE_PATH", "/workspace/issuance"),
		UserEmail:         firstenv("ELIBRA_USER_EMAIL", "user_email"),
		Password:          firstenv("ELIBRA_PASSWORD", "password"),
		ProfileDir:        getenv("CIRCDESK_PROFILE_DIR", "pw_profile"),
		Headless:          getbool("CIRCDESK_HEADLESS", false),
		MaxLoanDays:       getint("CIRCDESK_MAX_LOAN_DAYS", 30),
		DefaultResults:    getint("CIRCDESK_DEFAULT_RESULTS", 4),
		ListenAddr:        getenv("CIRCDESK_LISTEN_ADDR", ":8000"),
		AdminPIN:          getenv("CIRCDESK_ADMIN_PIN", ""),
		DBPath:            getenv("CIRCDESK_DB_PATH", "circdesk.db"),
		LogFile:           getenv("CIRCDESK_LOG_FILE", "logs/circdesk.log"),
		SelectorFile:      getenv("CIRCDESK_SELECTOR_FILE", ""),
		StartupWebhookURL: getenv("DISCORD_STARTUP_WEBHOOK_URL", ""),
		EventsWebhookURL:  getenv("DISCORD_EVENTS_WEBHOOK_URL", ""),
	}

	if err := validator.New().Struct(s); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

// LoginURL returns the absolute URL of the login page.
func (s *Settings) LoginURL() string { return s.BaseURL + s.LoginPath }

// WorkspaceURL returns the absolute URL of the issuance workspace.
func (s *Settings) WorkspaceURL() string { return s.BaseURL + s.WorkspacePath }

// ClampLoanDays bounds a requested loan duration to [1, MaxLoanDays].
// Callers must clamp before a request reaches the RPA core.
func (s *Settings) ClampLoanDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > s.MaxLoanDays {
		return s.MaxLoanDays
	}
	return days
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// firstenv returns the first non-empty value among the given keys. The remote
// system's original deployment used lowercase aliases for credentials.
func firstenv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getbool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
