package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parsing errors.
var (
	ErrInvalidDuration = errors.New("invalid duration format")
	ErrUnknownUnit     = errors.New("unknown duration unit")
)

// ParseDuration parses Go durations ("90s", "1h30m") and whole-number day and
// week durations ("2d", "1w").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, ErrInvalidDuration
		}
		return d, nil
	}
	if len(s) < 2 {
		return 0, ErrInvalidDuration
	}

	unit := s[len(s)-1]
	value, err := strconv.ParseUint(s[:len(s)-1], 10, 32)
	if err != nil {
		return 0, ErrInvalidDuration
	}

	switch unit {
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %c", ErrUnknownUnit, unit)
	}
}

// Duration is a time.Duration that reads from YAML as a string such as "30s"
// or "2d", or as a bare number of seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: %w", node.Line, ErrInvalidDuration)
	}
	if secs, err := strconv.ParseFloat(node.Value, 64); err == nil {
		if secs < 0 {
			return fmt.Errorf("line %d: %w: %s", node.Line, ErrInvalidDuration, node.Value)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w: %s", node.Line, err, node.Value)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}
