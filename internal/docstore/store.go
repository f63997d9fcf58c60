// Package docstore defines a minimal document database: JSON values written
// under a (collection, key) pair. Writes replace any existing document.
package docstore

import (
	"context"
	"errors"
	"fmt"
)

// Store writes documents.
type Store interface {
	WriteDocument(ctx context.Context, collection, key string, value any) error
}

var (
	ErrEmptyCollection = errors.New("collection is required")
	ErrEmptyKey        = errors.New("key is required")
)

// Error describes a failed store operation.
type Error struct {
	Op         string
	Collection string
	Key        string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("docstore: %s %s/%s: %v", e.Op, e.Collection, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validate checks the document address. Backends call it before writing.
func Validate(collection, key string) error {
	if collection == "" {
		return ErrEmptyCollection
	}
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
