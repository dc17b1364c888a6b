package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (unreadable config, bad workspace)
	ExitDataError   = 3 // Missing input data (no papers, no analysis, no document)
	ExitAPIError    = 4 // Remote API failure (search source, AI provider)
)
