/*
Package errs defines the companion server's application error codes and the CustomError type
rendered to HTTP clients.
*/
package errs

// 1xxx: request handling
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not accepted by the endpoint.
	ErrUnsupportedMediaType = 1002

	// ErrFormParseFailed indicates a multipart or URL-encoded body that could not be parsed.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the client IP exceeded its request budget.
	ErrRateLimitExceeded = 1007
)

// 2xxx: login form validation
const (
	// ErrNameBlank indicates a login without a display name.
	ErrNameBlank = 2001

	// ErrChannelBlank indicates a login without a channel.
	ErrChannelBlank = 2002

	// ErrEmailInvalid indicates an email that does not parse as an address.
	ErrEmailInvalid = 2003

	// ErrChannelNameInvalid indicates a channel name with characters outside the allowed set.
	ErrChannelNameInvalid = 2004
)

// 3xxx: session
const (
	// ErrUnauthorized indicates a missing, malformed or expired session token.
	ErrUnauthorized = 3001
)

// 5xxx: internal
const (
	// ErrUnknown represents an unclassified server error.
	ErrUnknown = 5000

	// ErrHistoryUnavailable indicates the message history backend failed.
	ErrHistoryUnavailable = 5001
)
