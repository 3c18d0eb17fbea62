// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// DefaultPlaceholder is shown for items without any usable image.
const DefaultPlaceholder = "https://via.placeholder.com/800x500/0f172a/f8fafc?text=NaijaBuzz"

// ErrHelp is returned by Load when usage was requested.
var ErrHelp = errors.New("help requested")

// Config holds the application configuration. Every option can be set
// through its environment variable or its long flag.
type Config struct {
	DatabasePath string `long:"db" env:"DATABASE_PATH" default:"./data/newsbuzz.db" description:"Path to the SQLite database"`
	LogLevel     string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level (debug, info, warn, error)"`
	ListenAddr   string `long:"listen" env:"LISTEN_ADDR" default:":8080" description:"HTTP listen address"`

	SourcesPath      string `long:"sources" env:"SOURCES_PATH" description:"YAML source registry; the built-in list is used when empty"`
	PlaceholderImage string `long:"placeholder" env:"PLACEHOLDER_IMAGE" default:"https://via.placeholder.com/800x500/0f172a/f8fafc?text=NaijaBuzz" description:"Image URL for items without one"`

	Schedule       string        `long:"schedule" env:"INGEST_SCHEDULE" default:"@every 30m" description:"Cron schedule of ingestion passes"`
	Workers        int           `long:"workers" env:"WORKERS" default:"4" description:"Sources fetched concurrently"`
	MaxEntries     int           `long:"max-entries" env:"MAX_ENTRIES" default:"15" description:"Entries considered per source"`
	ShuffleSources bool          `long:"shuffle" env:"SHUFFLE_SOURCES" description:"Randomize source order on every pass"`
	FetchTimeout   time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"15s" description:"Timeout of a feed fetch"`
	UserAgent      string        `long:"user-agent" env:"USER_AGENT" default:"NewsBuzz/1.0" description:"User-Agent for outgoing requests"`

	ImageTimeout        time.Duration `long:"image-timeout" env:"IMAGE_TIMEOUT" default:"10s" description:"Timeout of an article page fetch"`
	ImageFetchInterval  time.Duration `long:"image-interval" env:"IMAGE_FETCH_INTERVAL" default:"2s" description:"Minimum spacing between article page fetches"`
	DisableRemoteImages bool          `long:"no-remote-images" env:"DISABLE_REMOTE_IMAGES" description:"Never fetch article pages for og:image"`

	TitlePrefixes bool `long:"title-prefixes" env:"TITLE_PREFIXES" description:"Prepend a random display label to titles"`
	RetentionDays int  `long:"retention-days" env:"RETENTION_DAYS" default:"0" description:"Delete items stored longer than this; 0 keeps everything"`
	RedisAddr     string `long:"redis" env:"REDIS_ADDR" description:"Redis address of the shared dedup cache (optional)"`

	TelegramBotToken   string `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token; the bot is disabled when empty"`
	TelegramReportChat int64  `long:"telegram-report-chat" env:"TELEGRAM_REPORT_CHAT" default:"0" description:"Chat that receives scheduled run reports"`
	AllowedUsersRaw    string `long:"allowed-users" env:"ALLOWED_USERS" description:"Comma separated Telegram user IDs allowed to use the bot"`

	AllowedUsers []int64 `no-flag:"true"`
}

// Load reads configuration from environment variables and args.
func Load(args ...string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	users, err := parseUsers(cfg.AllowedUsersRaw)
	if err != nil {
		return nil, err
	}
	cfg.AllowedUsers = users

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseUsers(raw string) ([]int64, error) {
	var users []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		users = append(users, uid)
	}
	return users, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.MaxEntries <= 0 {
		return fmt.Errorf("MAX_ENTRIES must be positive, got %d", c.MaxEntries)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("RETENTION_DAYS must not be negative, got %d", c.RetentionDays)
	}
	if c.FetchTimeout <= 0 || c.ImageTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.ImageFetchInterval < 0 {
		return errors.New("IMAGE_FETCH_INTERVAL must not be negative")
	}
	u, err := url.Parse(c.PlaceholderImage)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PLACEHOLDER_IMAGE must be an absolute http(s) URL, got %q", c.PlaceholderImage)
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

// Retention returns the maximum item age, or 0 when pruning is off.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// NewLogger builds the text logger used by every command.
func NewLogger(w io.Writer, level string) *slog.Logger {
	lvl, _ := parseLevel(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
