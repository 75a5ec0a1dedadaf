// Package services implements the persistence facade and the cache-to-
// database sync coordinator. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrChatNotFound indicates that the requested chat entry exists in
	// neither the cache tier nor the durable tier.
	ErrChatNotFound = errors.New("chat entry not found")

	// ErrEmptyUserID is returned when a save or read is attempted without an
	// owning user id.
	ErrEmptyUserID = errors.New("user id is empty")

	// ErrEmptyQuery is returned when a save request contains an empty query.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrTooLong is returned when a query or response exceeds the configured
	// maximum length limit.
	ErrTooLong = errors.New("payload too long")
)
