package app

import (
	"sort"
	"sync"
)

// tradeLocks hands out one mutex per trade id so passes over the same trade never
// overlap while different trades proceed in parallel. Entries are dropped once unused.
type tradeLocks struct {
	mu    sync.Mutex
	locks map[string]*tradeLock
}

type tradeLock struct {
	mu   sync.Mutex
	refs int
}

func newTradeLocks() *tradeLocks {
	return &tradeLocks{locks: make(map[string]*tradeLock)}
}

// Lock blocks until id is free and returns the matching unlock.
func (l *tradeLocks) Lock(id string) func() {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &tradeLock{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// LockAll takes every id in sorted order so two multi-trade callers cannot deadlock.
func (l *tradeLocks) LockAll(ids []string) func() {
	sorted := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Strings(sorted)

	unlocks := make([]func(), 0, len(sorted))
	for _, id := range sorted {
		unlocks = append(unlocks, l.Lock(id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (l *tradeLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
