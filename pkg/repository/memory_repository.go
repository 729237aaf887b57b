package repository

import (
	"context"
	"fmt"
	"sync"

	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
)

type MemoryRepository[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	idFn  IDExtractor[T]
}

func NewMemoryRepo[T any](idFn IDExtractor[T]) *MemoryRepository[T] {
	return &MemoryRepository[T]{
		items: make(map[string]T),
		idFn:  idFn,
	}
}

func notFound[T any](op, id string) (T, error) {
	var zero T
	return zero, svcerror.New(
		svcerror.ErrNotFound,
		svcerror.WithOp(op),
		svcerror.WithMsg(fmt.Sprintf("resource with id %s not found", id)),
	)
}

func (r *MemoryRepository[T]) Load(ctx context.Context, id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[id]
	if !ok {
		return notFound[T]("Repository.Memory.Load", id)
	}
	return v, nil
}

func (r *MemoryRepository[T]) Save(ctx context.Context, entity T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[r.idFn(entity)] = entity
	return nil
}

func (r *MemoryRepository[T]) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		_, err := notFound[T]("Repository.Memory.Delete", id)
		return err
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository[T]) List(ctx context.Context) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out, nil
}
