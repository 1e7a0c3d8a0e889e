package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Environment variables read by ApplyEnv. VXRAIL_PASSWORD is read by the
// credentials package only.
const (
	EnvHost      = "VXRAIL_HOST"
	EnvUsername  = "VXRAIL_USERNAME"
	EnvPassword  = "VXRAIL_PASSWORD"
	EnvVerifyTLS = "VXRAIL_VERIFY_TLS"
	EnvLogLevel  = "VXH_LOG_LEVEL"
	EnvOutputDir = "VXH_OUTPUT_DIR"
	EnvBrokers   = "VXH_KAFKA_BROKERS"
	EnvTopic     = "VXH_KAFKA_TOPIC"
)

// ApplyEnv overrides file values with non-empty environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvHost)); v != "" {
		c.Host = v
	}
	if v := strings.TrimSpace(getenv(EnvUsername)); v != "" {
		c.Username = v
	}
	if v := strings.TrimSpace(getenv(EnvVerifyTLS)); v != "" {
		verify, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, EnvVerifyTLS, v)
		}
		c.VerifyTLS = verify
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(getenv(EnvOutputDir)); v != "" {
		c.OutputDir = ExpandPath(v)
	}
	if v := strings.TrimSpace(getenv(EnvBrokers)); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := strings.TrimSpace(getenv(EnvTopic)); v != "" {
		c.Kafka.Topic = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
