// Package store persists users, orders and product lookups in MongoDB.
package store

import "errors"

var (
	ErrNotFound = errors.New("document not found")
	// ErrPreconditionFailed means a conditional write matched no document: the
	// document is gone or no longer in the required state.
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrDuplicate          = errors.New("duplicate key")
)
