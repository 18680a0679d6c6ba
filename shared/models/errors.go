package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound      = errors.New("resource not found") // General not found
	ErrStoryNotFound = errors.New("story not found")
	ErrDuplicate     = errors.New("resource already exists")

	// Authentication Errors
	ErrUnauthorized   = errors.New("unauthorized") // Authentication required or failed
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Configuration Errors
	ErrConfiguration       = errors.New("service configuration is incomplete")
	ErrNoProviderAvailable = errors.New("no usable AI provider configured")

	// Story Generation Errors
	ErrAllProvidersFailed        = errors.New("all AI providers failed")
	ErrMalformedProviderResponse = errors.New("malformed AI provider response")
	ErrUnresolvedPlaceholder     = errors.New("prompt contains unresolved placeholder")
	ErrInvalidChoiceIndex        = errors.New("choice index is out of range")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
)
