package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeBrowser represents headless browser errors
	ErrorTypeBrowser ErrorType = "browser"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeDelivery represents notification delivery errors
	ErrorTypeDelivery ErrorType = "delivery"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// TrackerError represents an error raised by one of the tracker components
type TrackerError struct {
	Type      ErrorType
	Component string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *TrackerError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Component != "" {
		prefix += " " + e.Component + ":"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s - %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *TrackerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *TrackerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeBrowser:
		return true
	default:
		return false
	}
}

// IsType reports whether err wraps a TrackerError of the given type.
func IsType(err error, errType ErrorType) bool {
	var te *TrackerError
	if !stderrors.As(err, &te) {
		return false
	}
	return te.Type == errType
}

// New creates a new TrackerError
func New(errType ErrorType, component, message string, err error) *TrackerError {
	return &TrackerError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(component, message string, err error) *TrackerError {
	return New(ErrorTypeNetwork, component, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(component, message string, err error) *TrackerError {
	return New(ErrorTypeParsing, component, message, err)
}

// NewRateLimit creates a new rate limit error. retryAfter is the raw
// Retry-After value reported by the site, possibly empty.
func NewRateLimit(component, retryAfter string) *TrackerError {
	message := "rate limited"
	if retryAfter != "" {
		message = fmt.Sprintf("rate limited; retry after %s", retryAfter)
	}
	return New(ErrorTypeRateLimit, component, message, nil)
}

// NewBrowser creates a new headless browser error
func NewBrowser(component, message string, err error) *TrackerError {
	return New(ErrorTypeBrowser, component, message, err)
}

// NewCache creates a new cache error
func NewCache(component, message string, err error) *TrackerError {
	return New(ErrorTypeCache, component, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(component, message string, err error) *TrackerError {
	return New(ErrorTypePublisher, component, message, err)
}

// NewDelivery creates a new notification delivery error
func NewDelivery(component, message string, err error) *TrackerError {
	return New(ErrorTypeDelivery, component, message, err)
}

// NewValidation creates a new validation error
func NewValidation(component, message string) *TrackerError {
	return New(ErrorTypeValidation, component, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *TrackerError {
	return New(ErrorTypeConfiguration, "", message, err)
}
