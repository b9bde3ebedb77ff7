// Package log builds the slog loggers used by sitedigest.
//
// Every logger returned here wraps its handler in a SecureHandler, which masks
// values that must not end up in log files even with --verbose:
//   - cookies and authorization headers passed in from the config file
//   - user info and token-like query parameters in logged URLs
//   - values that look like bearer tokens, JWTs or API keys
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetch", "url", "https://user:pw@example.com/?token=abc")
//	// url=https://***REDACTED***@example.com/?token=%2A%2A%2AREDACTED%2A%2A%2A
package log
