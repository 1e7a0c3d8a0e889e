package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/vxkit/vxh/internal/config"
	"github.com/vxkit/vxh/internal/credentials"
	"github.com/vxkit/vxh/internal/health"
	"github.com/vxkit/vxh/internal/vxrail"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// output writes v as JSON, or calls human when --human is set.
func output(v any, human func()) {
	if humanOutput {
		human()
		return
	}
	if err := outputJSON(v); err != nil {
		exitWithError(ExitError, "encoding JSON: %v", err)
	}
}

// colored reports whether human output should use colour.
func colored() bool {
	return humanOutput && !color.NoColor
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg, Code: code})
	}
	os.Exit(code)
}

// exitOnError reports err with the exit code that describes it and exits.
func exitOnError(err error) {
	exitWithError(exitCodeFor(err), "%s", errorMessage(err))
}

// errorMessage describes err for the user. A rejected credential is named as
// an authentication failure ahead of the request that hit it.
func errorMessage(err error) string {
	if !vxrail.IsUnauthorized(err) {
		return err.Error()
	}
	msg := err.Error()
	if strings.Contains(msg, vxrail.ErrUnauthorized.Error()) {
		return "authentication failed: " + msg
	}
	return fmt.Sprintf("authentication failed: %v (%s)", vxrail.ErrUnauthorized, msg)
}

// exitCodeFor maps an error to the exit code that describes it.
func exitCodeFor(err error) int {
	switch {
	case vxrail.IsUnauthorized(err):
		return ExitAuthError
	case errors.Is(err, credentials.ErrIncomplete),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrSecretInConfig),
		errors.Is(err, health.ErrUnknownKind):
		return ExitConfigError
	default:
		return ExitError
	}
}

// verdictExitCode maps a verdict to the process exit code.
func verdictExitCode(v health.Verdict) int {
	switch v {
	case health.VerdictHealthy:
		return ExitSuccess
	case health.VerdictUnhealthy:
		return ExitUnhealthy
	default:
		return ExitUnknown
	}
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
