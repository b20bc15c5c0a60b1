package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// ClaimFunc processes one claim ID
type ClaimFunc[T any] func(ctx context.Context, claimID string) (T, error)

// ClaimJob runs a ClaimFunc for one position in a batch
type ClaimJob[T any] struct {
	index   int
	claimID string
	fn      ClaimFunc[T]
	timeout time.Duration
}

// Execute executes the claim job
func (j *ClaimJob[T]) Execute(ctx context.Context) Result {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	value, err := j.fn(ctx, j.claimID)
	return &ClaimResult[T]{
		index:   j.index,
		ClaimID: j.claimID,
		Value:   value,
		Error:   err,
	}
}

// ClaimResult is the outcome for one claim of a batch
type ClaimResult[T any] struct {
	index   int
	ClaimID string
	Value   T
	Error   error
}

// GetError returns the error from the claim result
func (r *ClaimResult[T]) GetError() error {
	return r.Error
}

// BatchProcessor runs a ClaimFunc over many claim IDs concurrently.
// Results come back in input order.
type BatchProcessor[T any] struct {
	fn          ClaimFunc[T]
	concurrency int
	itemTimeout time.Duration
}

// NewBatchProcessor creates a new batch processor. itemTimeout of zero disables the per-item deadline.
func NewBatchProcessor[T any](fn ClaimFunc[T], concurrency int, itemTimeout time.Duration) *BatchProcessor[T] {
	return &BatchProcessor[T]{
		fn:          fn,
		concurrency: concurrency,
		itemTimeout: itemTimeout,
	}
}

// Process processes claim IDs concurrently
func (b *BatchProcessor[T]) Process(ctx context.Context, claimIDs []string) []*ClaimResult[T] {
	out := make([]*ClaimResult[T], len(claimIDs))
	if len(claimIDs) == 0 {
		return out
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, id := range claimIDs {
		job := &ClaimJob[T]{index: i, claimID: id, fn: b.fn, timeout: b.itemTimeout}
		if !pool.Submit(job) {
			break
		}
	}

	for _, result := range pool.Wait() {
		r := result.(*ClaimResult[T])
		out[r.index] = r
	}

	// Jobs never run because the context ended still get an entry
	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &ClaimResult[T]{index: i, ClaimID: claimIDs[i], Error: err}
		}
	}

	return out
}

// ProcessFile reads claim IDs from a file and processes them concurrently
func (b *BatchProcessor[T]) ProcessFile(ctx context.Context, filePath string) ([]*ClaimResult[T], error) {
	ids, err := ReadIDsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claim IDs: %w", err)
	}

	return b.Process(ctx, ids), nil
}

// ReadIDsFromFile reads identifiers from a file (one per line), skipping
// blank lines, comments and duplicates
func ReadIDsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			ids = append(ids, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return ids, nil
}
