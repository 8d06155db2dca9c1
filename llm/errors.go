package llm

import "fmt"

// SDKError is the base error type for all client errors.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ProviderError represents an error returned by a provider's API.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	Retryable  bool
	RetryAfter *float64
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d, retryable=%v)", e.Provider, e.Message, e.StatusCode, e.Retryable)
}

// Concrete provider error types.

type AuthenticationError struct{ ProviderError }
type AccessDeniedError struct{ ProviderError }
type NotFoundError struct{ ProviderError }
type InvalidRequestError struct{ ProviderError }
type RateLimitError struct{ ProviderError }
type ServerError struct{ ProviderError }
type ContextLengthError struct{ ProviderError }

// Non-provider errors.

type RequestTimeoutError struct{ SDKError }
type NetworkError struct{ SDKError }
type AbortError struct{ SDKError }
type ConfigurationError struct{ SDKError }

// ErrorFromStatusCode maps an HTTP status code to the appropriate error type.
func ErrorFromStatusCode(statusCode int, provider, message string) error {
	pe := ProviderError{
		SDKError:   SDKError{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
	}

	switch statusCode {
	case 400, 422:
		return &InvalidRequestError{ProviderError: pe}
	case 401:
		return &AuthenticationError{ProviderError: pe}
	case 403:
		return &AccessDeniedError{ProviderError: pe}
	case 404:
		return &NotFoundError{ProviderError: pe}
	case 408:
		return &RequestTimeoutError{SDKError: SDKError{Message: message}}
	case 413:
		return &ContextLengthError{ProviderError: pe}
	case 429:
		pe.Retryable = true
		return &RateLimitError{ProviderError: pe}
	case 500, 502, 503, 504:
		pe.Retryable = true
		return &ServerError{ProviderError: pe}
	default:
		// Unknown status codes default to retryable.
		pe.Retryable = true
		return &pe
	}
}

// IsRetryable returns true if the error is safe to retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch e := err.(type) {
	case *ProviderError:
		return e.Retryable
	case *RateLimitError, *ServerError, *NetworkError, *RequestTimeoutError:
		return true
	case *AuthenticationError, *AccessDeniedError, *NotFoundError,
		*InvalidRequestError, *ContextLengthError, *ConfigurationError,
		*AbortError:
		return false
	default:
		return false
	}
}
