package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownKey is returned by Get and Set for a key outside Keys.
var ErrUnknownKey = errors.New("unknown configuration key")

type field struct {
	get func(*Config) string
	set func(*Config, string) error
}

var fields = map[string]field{
	"host":            {func(c *Config) string { return c.Host }, setString(func(c *Config) *string { return &c.Host })},
	"username":        {func(c *Config) string { return c.Username }, setString(func(c *Config) *string { return &c.Username })},
	"verify_tls":      {func(c *Config) string { return strconv.FormatBool(c.VerifyTLS) }, setBool(func(c *Config) *bool { return &c.VerifyTLS })},
	"timeout":         {func(c *Config) string { return c.Timeout.String() }, setDuration(func(c *Config) *Duration { return &c.Timeout })},
	"rate_limit":      {func(c *Config) string { return strconv.FormatFloat(c.RateLimit, 'g', -1, 64) }, setRateLimit},
	"workers":         {func(c *Config) string { return strconv.Itoa(c.Workers) }, setInt(func(c *Config) *int { return &c.Workers })},
	"poll_interval":   {func(c *Config) string { return c.PollInterval.String() }, setDuration(func(c *Config) *Duration { return &c.PollInterval })},
	"max_wait":        {func(c *Config) string { return c.MaxWait.String() }, setDuration(func(c *Config) *Duration { return &c.MaxWait })},
	"max_poll_misses": {func(c *Config) string { return strconv.Itoa(c.MaxPollMisses) }, setInt(func(c *Config) *int { return &c.MaxPollMisses })},
	"kinds":           {func(c *Config) string { return strings.Join(c.Kinds, ",") }, setList(func(c *Config) *[]string { return &c.Kinds })},
	"precheck_path":   {func(c *Config) string { return c.PrecheckPath }, setString(func(c *Config) *string { return &c.PrecheckPath })},
	"output_dir":      {func(c *Config) string { return c.OutputDir }, setPath(func(c *Config) *string { return &c.OutputDir })},
	"history_db":      {func(c *Config) string { return c.HistoryDB }, setPath(func(c *Config) *string { return &c.HistoryDB })},
	"metrics_file":    {func(c *Config) string { return c.MetricsFile }, setPath(func(c *Config) *string { return &c.MetricsFile })},
	"journal_file":    {func(c *Config) string { return c.JournalFile }, setPath(func(c *Config) *string { return &c.JournalFile })},
	"log_level":       {func(c *Config) string { return c.LogLevel }, setString(func(c *Config) *string { return &c.LogLevel })},
	"kafka.brokers":   {func(c *Config) string { return strings.Join(c.Kafka.Brokers, ",") }, setList(func(c *Config) *[]string { return &c.Kafka.Brokers })},
	"kafka.topic":     {func(c *Config) string { return c.Kafka.Topic }, setString(func(c *Config) *string { return &c.Kafka.Topic })},
}

// Keys returns the settable keys in file order.
func Keys() []string {
	return []string{
		"host", "username", "verify_tls", "timeout", "rate_limit", "workers",
		"poll_interval", "max_wait", "max_poll_misses", "kinds", "precheck_path",
		"output_dir", "history_db", "metrics_file", "journal_file", "log_level",
		"kafka.brokers", "kafka.topic",
	}
}

// NormalizeKey maps flag-style keys (max-wait, kafka-topic) to file keys.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if strings.HasPrefix(key, "kafka-") {
		key = "kafka." + strings.TrimPrefix(key, "kafka-")
	}
	return strings.ReplaceAll(key, "-", "_")
}

// Get returns the value of key as it would be written on the command line.
func (c *Config) Get(key string) (string, error) {
	f, err := lookup(key)
	if err != nil {
		return "", err
	}
	return f.get(c), nil
}

// Set parses value into key. The password can never be set.
func (c *Config) Set(key, value string) error {
	f, err := lookup(key)
	if err != nil {
		return err
	}
	if err := f.set(c, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, NormalizeKey(key), err)
	}
	return nil
}

func lookup(key string) (field, error) {
	k := NormalizeKey(key)
	switch k {
	case "password", "secret", "pass":
		return field{}, fmt.Errorf("%w; use VXRAIL_PASSWORD or the prompt", ErrSecretInConfig)
	}
	f, ok := fields[k]
	if !ok {
		return field{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return f, nil
}

func setString(ptr func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*ptr(c) = v
		return nil
	}
}

func setPath(ptr func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*ptr(c) = ExpandPath(v)
		return nil
	}
}

func setBool(ptr func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%q is not a boolean", v)
		}
		*ptr(c) = b
		return nil
	}
}

func setInt(ptr func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%q is not a whole number", v)
		}
		*ptr(c) = n
		return nil
	}
}

func setDuration(ptr func(*Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := ParseDuration(v)
		if err != nil {
			return err
		}
		*ptr(c) = Duration(d)
		return nil
	}
}

func setList(ptr func(*Config) *[]string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*ptr(c) = splitList(v)
		return nil
	}
}

func setRateLimit(c *Config, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", v)
	}
	c.RateLimit = f
	return nil
}
