// Package guard provides the lock wrapped around a load-modify-save cycle.
//
// Without it two concurrent writers can both load the collection, apply
// their own change and save, and the second save silently drops the first
// change. A Guard serializes those cycles. Readers never take it.
package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Mode names a Guard implementation in configuration.
type Mode string

const (
	ModeMutex Mode = "mutex" // one writer per process
	ModeFile  Mode = "file"  // one writer per lock file, across processes
	ModeNone  Mode = "none"  // no exclusion, last write wins
)

// Guard serializes critical sections. Acquire blocks until the section is
// free or ctx is done; the returned release func must be called exactly once.
type Guard interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// New builds the Guard for mode. lockPath is only used by ModeFile.
func New(mode Mode, lockPath string) (Guard, error) {
	switch mode {
	case ModeMutex, "":
		return NewMutex(), nil
	case ModeFile:
		return NewFileLock(lockPath), nil
	case ModeNone:
		return Nop(), nil
	default:
		return nil, fmt.Errorf("guard: unknown mode %q", mode)
	}
}

// Mutex is an in-process lock. It is a one-slot channel rather than a
// sync.Mutex so that waiting can be abandoned when ctx is cancelled.
type Mutex struct {
	slot chan struct{}
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{slot: make(chan struct{}, 1)}
}

// Acquire waits for the lock or for ctx to be done.
func (m *Mutex) Acquire(ctx context.Context) (func(), error) {
	select {
	case m.slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-m.slot }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DefaultRetryDelay is how often FileLock polls a lock held elsewhere.
const DefaultRetryDelay = 20 * time.Millisecond

// FileLock is an advisory lock on a file next to the data, so several
// server processes sharing one data directory do not lose updates.
//
// flock locks belong to the open file, not the goroutine, so an in-process
// Mutex is taken first to keep goroutines of this process apart.
type FileLock struct {
	local *Mutex
	file  *flock.Flock
	retry time.Duration
}

// NewFileLock returns a FileLock on path. The file is created on first use.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		local: NewMutex(),
		file:  flock.New(path),
		retry: DefaultRetryDelay,
	}
}

// Path returns the lock file location.
func (f *FileLock) Path() string {
	return f.file.Path()
}

// Acquire takes the in-process lock, then polls the file lock until it is
// held or ctx is done.
func (f *FileLock) Acquire(ctx context.Context) (func(), error) {
	releaseLocal, err := f.local.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	locked, err := f.file.TryLockContext(ctx, f.retry)
	if err != nil || !locked {
		releaseLocal()
		if err == nil {
			err = fmt.Errorf("guard: lock %s not acquired", f.file.Path())
		}
		return nil, fmt.Errorf("guard: locking %s: %w", f.file.Path(), err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = f.file.Unlock()
			releaseLocal()
		})
	}, nil
}

type nop struct{}

// Nop returns a Guard that never excludes anything.
func Nop() Guard { return nop{} }

func (nop) Acquire(context.Context) (func(), error) {
	return func() {}, nil
}
