package repository

import (
	"context"

	"github.com/m-mizutani/vestige/pkg/model"
)

// Repository is the append-only fragment log
type Repository interface {
	// PutMemory appends a memory to the log
	PutMemory(ctx context.Context, memory *model.Memory) error

	// LoadMemories reads every memory in insertion order, skipping entries that cannot be decoded
	LoadMemories(ctx context.Context) (*LoadResult, error)
}

// LoadResult is the outcome of a full reload of the log
type LoadResult struct {
	Memories []*model.Memory
	// Skipped is the number of entries dropped because they could not be decoded
	Skipped int
}
