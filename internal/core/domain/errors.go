package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors returned by services and mapped to HTTP status codes by handlers
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrAccountNotFound      = errors.New("whatsapp account not found")
	ErrAccountNotLinked     = errors.New("conversation has no linked whatsapp account")
	ErrAccountInactive      = errors.New("whatsapp account is inactive")
	ErrDuplicate            = errors.New("duplicate record")
	ErrSendFailed           = errors.New("whatsapp send failed")
)

// Provider errors, returned wrapped by the outbound gateways
var (
	// ErrTokenExpired is Graph API error code 190; the account must be deactivated
	ErrTokenExpired = errors.New("access token expired or invalid")

	// ErrRateLimited is Graph API error code 4, 17, 32 or 613
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrPermissionDenied is Graph API error code 10, 200 or 299
	ErrPermissionDenied = errors.New("provider permission denied")

	// ErrInvalidProviderResponse means the provider answered with a body that is not JSON
	ErrInvalidProviderResponse = errors.New("invalid provider response")
)

// UnresolvedReferenceError is returned when an ingested entity points at a
// parent external id that is not declared in the same batch
type UnresolvedReferenceError struct {
	Entity     string // "campaign", "ad_set", "creative", "metric"
	Parent     string // "account", "campaign", "ad_set", "creative"
	ExternalID string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s references unknown %s %q", e.Entity, e.Parent, e.ExternalID)
}

// ValidationError carries field-level problems found while parsing a request
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid payload"
	}
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return "invalid payload: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError with a single field problem
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
