package main

// Exit codes. Health verdicts map to their own codes so scripts can tell a
// failed run from an unhealthy cluster.
const (
	ExitSuccess     = 0 // Success, or a healthy verdict
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing host, invalid values)
	ExitAuthError   = 3 // Credentials rejected by VxRail Manager
	ExitUnhealthy   = 4 // At least one entity or pre-check check is unhealthy
	ExitUnknown     = 5 // Health could not be determined
)
