package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/auctiondesk/internal/storage"
)

// Config is the console daemon configuration.
type Config struct {
	Listen         string         `yaml:"listen"`
	ProfileID      string         `yaml:"profile_id"`
	ReloadSchedule string         `yaml:"reload_schedule"`
	OriginPatterns []string       `yaml:"origin_patterns"`
	API            APIConfig      `yaml:"api"`
	Storage        storage.Config `yaml:"storage"`
	Bids           BidsConfig     `yaml:"bids"`
	Comps          CompsConfig    `yaml:"comps"`
	Logging        LoggingConfig  `yaml:"logging"`
}

// APIConfig locates and authenticates against the remote API. Either Token or
// Email and Password must be set.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	Email          string `yaml:"email"`
	Password       string `yaml:"password"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type BidsConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type CompsConfig struct {
	BatchPollSeconds int `yaml:"batch_poll_seconds"`
	TopN             int `yaml:"top_n"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Bids:    BidsConfig{IntervalSeconds: 5},
		Comps:   CompsConfig{BatchPollSeconds: 2, TopN: 3},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (a missing file is not an error) on top of the defaults and
// then applies AUCTIONDESK_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"AUCTIONDESK_LISTEN":          &c.Listen,
		"AUCTIONDESK_PROFILE_ID":      &c.ProfileID,
		"AUCTIONDESK_RELOAD_SCHEDULE": &c.ReloadSchedule,
		"AUCTIONDESK_API_URL":         &c.API.BaseURL,
		"AUCTIONDESK_API_TOKEN":       &c.API.Token,
		"AUCTIONDESK_API_EMAIL":       &c.API.Email,
		"AUCTIONDESK_API_PASSWORD":    &c.API.Password,
		"AUCTIONDESK_S3_ENDPOINT":     &c.Storage.Endpoint,
		"AUCTIONDESK_S3_BUCKET":       &c.Storage.Bucket,
		"AUCTIONDESK_S3_REGION":       &c.Storage.Region,
		"AUCTIONDESK_S3_ACCESS_KEY":   &c.Storage.AccessKey,
		"AUCTIONDESK_S3_SECRET_KEY":   &c.Storage.SecretKey,
		"AUCTIONDESK_S3_PUBLIC_URL":   &c.Storage.PublicBaseURL,
		"AUCTIONDESK_LOG_LEVEL":       &c.Logging.Level,
		"AUCTIONDESK_LOG_FORMAT":      &c.Logging.Format,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	// Comma separated, e.g. "localhost:5173,desk.example.com".
	if v, ok := os.LookupEnv("AUCTIONDESK_ORIGIN_PATTERNS"); ok {
		c.OriginPatterns = splitList(v)
	}

	ints := map[string]*int{
		"AUCTIONDESK_API_TIMEOUT":  &c.API.TimeoutSeconds,
		"AUCTIONDESK_BID_INTERVAL": &c.Bids.IntervalSeconds,
		"AUCTIONDESK_COMPS_TOP_N":  &c.Comps.TopN,
		"AUCTIONDESK_BATCH_POLL":   &c.Comps.BatchPollSeconds,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports missing settings the daemon cannot start without.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.Token == "" && (c.API.Email == "" || c.API.Password == "") {
		return errors.New("api.token or api.email and api.password are required")
	}
	if c.API.Token != "" && c.ProfileID == "" {
		return errors.New("profile_id is required when using a static token")
	}
	return nil
}

func (c *APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *BidsConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c *CompsConfig) BatchPoll() time.Duration {
	return time.Duration(c.BatchPollSeconds) * time.Second
}
