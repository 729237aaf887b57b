package database

import (
	"context"

	"github.com/vaishnaviprints/printlogic/pkg/utils"
)

// NewStoreFromEnv picks the store backend: postgres by default, in-process
// memory for local runs without infrastructure.
func NewStoreFromEnv(ctx context.Context) (Store, error) {
	if utils.GetEnv("STORE_BACKEND", "postgres") == "memory" {
		return NewMemoryStore(), nil
	}
	return NewPGDatabase(ctx)
}
