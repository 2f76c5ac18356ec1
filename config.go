package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"marketbot/command"
	"marketbot/poll"
)

// Config is the runtime configuration. Precedence, lowest first: defaults,
// the YAML file, .env, the process environment.
type Config struct {
	APIBaseURL       string  `yaml:"api_base_url"`
	NotifyChat       string  `yaml:"notify_chat"`
	BoostChat        string  `yaml:"boost_chat"`
	PollIntervalMS   int     `yaml:"poll_interval_ms"`
	BoostIntervalMS  int     `yaml:"boost_interval_ms"`
	RetryCount       int     `yaml:"retry_count"`
	RetryBaseDelayMS int     `yaml:"retry_base_delay_ms"`
	RequestTimeoutMS int     `yaml:"request_timeout_ms"`
	WhatsAppDB       string  `yaml:"whatsapp_db"`
	WhatsAppLogLevel string  `yaml:"whatsapp_log_level"`
	MockChat         bool    `yaml:"mock_chat"`
	SendRatePerSec   float64 `yaml:"send_rate_per_sec"`
	Port             string  `yaml:"port"`
	LogLevel         string  `yaml:"log_level"`
	CommandPrefix    string  `yaml:"command_prefix"`
	MediaRoot        string  `yaml:"media_root"`

	// Only read from the environment.
	GoogleCredentialsJSON string `yaml:"-"`
}

func defaultConfig() *Config {
	return &Config{
		PollIntervalMS:   60000,
		BoostIntervalMS:  60000,
		RetryCount:       3,
		RetryBaseDelayMS: 5000,
		RequestTimeoutMS: 10000,
		WhatsAppDB:       "session.db",
		WhatsAppLogLevel: "WARN",
		SendRatePerSec:   1,
		Port:             "8080",
		LogLevel:         "info",
		CommandPrefix:    command.DefaultPrefix,
	}
}

// loadConfig builds a Config from an optional YAML file and lookup, which
// is os.LookupEnv outside tests.
func loadConfig(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}

	str("API_BASE_URL", &cfg.APIBaseURL)
	str("NOTIFY_CHAT", &cfg.NotifyChat)
	str("BOOST_CHAT", &cfg.BoostChat)
	num("POLL_INTERVAL_MS", &cfg.PollIntervalMS)
	num("BOOST_INTERVAL_MS", &cfg.BoostIntervalMS)
	num("RETRY_COUNT", &cfg.RetryCount)
	num("RETRY_BASE_DELAY_MS", &cfg.RetryBaseDelayMS)
	num("REQUEST_TIMEOUT_MS", &cfg.RequestTimeoutMS)
	str("WHATSAPP_DB", &cfg.WhatsAppDB)
	str("WHATSAPP_LOG_LEVEL", &cfg.WhatsAppLogLevel)
	str("PORT", &cfg.Port)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("COMMAND_PREFIX", &cfg.CommandPrefix)
	str("MEDIA_ROOT", &cfg.MediaRoot)
	str("GOOGLE_CREDENTIALS_JSON", &cfg.GoogleCredentialsJSON)

	if v, ok := lookup("MOCK_CHAT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MOCK_CHAT: %q is not a boolean", v))
		} else {
			cfg.MockChat = b
		}
	}
	if v, ok := lookup("SEND_RATE_PER_SEC"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SEND_RATE_PER_SEC: %q is not a number", v))
		} else {
			cfg.SendRatePerSec = f
		}
	}

	if cfg.BoostChat == "" {
		cfg.BoostChat = cfg.NotifyChat
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL is required"))
	} else if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL %q must be an http(s) URL", c.APIBaseURL))
	}
	if c.NotifyChat == "" && !c.MockChat {
		errs = append(errs, errors.New("NOTIFY_CHAT is required unless MOCK_CHAT is set"))
	}
	if c.PollIntervalMS <= 0 || c.BoostIntervalMS <= 0 {
		errs = append(errs, errors.New("poll intervals must be positive"))
	}
	if c.RetryCount < 0 || c.RetryBaseDelayMS < 0 {
		errs = append(errs, errors.New("retry settings must not be negative"))
	}
	if c.RequestTimeoutMS <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT_MS must be positive"))
	}
	if c.SendRatePerSec <= 0 {
		errs = append(errs, errors.New("SEND_RATE_PER_SEC must be positive"))
	}
	if c.CommandPrefix == "" {
		errs = append(errs, errors.New("COMMAND_PREFIX must not be empty"))
	}
	return errors.Join(errs...)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c *Config) pollInterval() time.Duration { return ms(c.PollIntervalMS) }
func (c *Config) boostInterval() time.Duration { return ms(c.BoostIntervalMS) }
func (c *Config) requestTimeout() time.Duration { return ms(c.RequestTimeoutMS) }

func (c *Config) retryPolicy() poll.RetryPolicy {
	return poll.RetryPolicy{MaxRetries: c.RetryCount, BaseDelay: ms(c.RetryBaseDelayMS)}
}
