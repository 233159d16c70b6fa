// Package testutil provides testing utilities for paytoken.
//
// This package contains mock errors, identity fixtures and fakes shared across
// test files. It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
var (
	// ErrMockNetwork simulates a transport failure.
	ErrMockNetwork = errors.New("network error")

	// ErrMockStore simulates a storage failure.
	ErrMockStore = errors.New("store unavailable")

	// ErrMockAuthority simulates a Trust Authority rejection.
	ErrMockAuthority = errors.New("authority rejected key")
)
