// Package storage reads and replaces output objects in the configured
// destination.
package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Get when the object has never been written.
var ErrNotExist = errors.New("object does not exist")

// Store is a destination for the workbook and export files. Put must
// replace the object atomically: a reader sees either the old or the new
// content, never a partial write.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	Name() string
}
