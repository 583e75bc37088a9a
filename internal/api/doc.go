// Package api provides the HTTP client for the e3kit card directory and the
// cloud key store. It handles bearer authentication, JSON serialization, and
// opt-in retries for idempotent requests.
//
// # Client Creation
//
// The package provides two ways to create a client:
//
//   - [NewClient]: Struct-based configuration for explicit, type-safe setup.
//   - [New]: Functional options pattern for flexible configuration.
//
// Both require a [TokenFunc] and a base URL. The token function is called
// before every attempt and its result is sent as a bearer token. An empty
// token fails the request before it reaches the network.
//
// # Retry Behavior
//
// No request is retried by default. With [Config.MaxRetries] above zero,
// GET requests and card searches are retried with exponential backoff on
// network errors and on these status codes:
//
//   - 408 Request Timeout
//   - 429 Too Many Requests
//   - 500 Internal Server Error
//   - 502 Bad Gateway
//   - 503 Service Unavailable
//   - 504 Gateway Timeout
//
// Publishing a card and writing or deleting a cloud entry are sent once.
//
// # Error Handling
//
// Error responses become [APIError] values that match sentinels with
// errors.Is:
//
//	if errors.Is(err, api.ErrConflict) {
//	    // Someone else changed the entry; re-read it.
//	}
//
// # Thread Safety
//
// The [Client] type is safe for concurrent use.
package api
