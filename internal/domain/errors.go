// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the entity already exists.
var ErrConflict = errors.New("conflict")

// ErrNoProvider indicates an agent has no configured completion backend.
var ErrNoProvider = errors.New("no llm provider configured")
