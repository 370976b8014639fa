// Package storage provides the byte sources collaborators are loaded from.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound reports that a source has no object at its key.
var ErrNotFound = errors.New("not found")

type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// TestSource is a simple in-memory implementation for testing
type TestSource struct {
	data []byte
	err  error
}

func NewTestSource(data []byte) *TestSource {
	return &TestSource{data: data}
}

func NewTestSourceWithError() *TestSource {
	return &TestSource{err: ErrNotFound}
}

func (t *TestSource) Load(ctx context.Context) ([]byte, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.data, nil
}
