package errs

import "net/http"

// errorMap holds the template for every known code.
// Messages are shown verbatim by clients, so they stay short and human-readable.
var errorMap = map[int]CustomError{
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Message: "Failed to process submitted form.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	ErrNameBlank:          {Code: ErrNameBlank, Message: "Name can't be blank", Status: http.StatusUnprocessableEntity},
	ErrChannelBlank:       {Code: ErrChannelBlank, Message: "Channel can't be blank", Status: http.StatusUnprocessableEntity},
	ErrEmailInvalid:       {Code: ErrEmailInvalid, Message: "Email is not valid", Status: http.StatusUnprocessableEntity},
	ErrChannelNameInvalid: {Code: ErrChannelNameInvalid, Message: "Channel may only contain letters, digits, '-' and '_' (max %d)", Status: http.StatusUnprocessableEntity},

	ErrUnauthorized: {Code: ErrUnauthorized, Message: "Unauthorized", Status: http.StatusUnauthorized},

	ErrUnknown:            {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrHistoryUnavailable: {Code: ErrHistoryUnavailable, Message: "Message history is unavailable.", Status: http.StatusServiceUnavailable},
}
