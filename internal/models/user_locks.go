package models

import (
	"sync"
)

// UserLocks serialises account mutations per user inside this process.
// Users never block each other; only requests for the same user queue up.
type UserLocks struct {
	userLocks map[int64]*userLock // Map of user_id → mutex
	mapMutex  sync.Mutex          // Protects the map itself
}

type userLock struct {
	mu      sync.Mutex
	waiters int // holders plus goroutines waiting; entry is dropped at zero
}

// NewUserLocks creates an empty lock table
func NewUserLocks() *UserLocks {
	return &UserLocks{
		userLocks: make(map[int64]*userLock),
	}
}

// Lock blocks until the caller owns the lock for userID
func (ul *UserLocks) Lock(userID int64) {
	ul.mapMutex.Lock()
	l := ul.userLocks[userID]
	if l == nil {
		l = &userLock{}
		ul.userLocks[userID] = l
	}
	l.waiters++
	ul.mapMutex.Unlock()

	l.mu.Lock()
}

// Unlock releases the lock for userID
func (ul *UserLocks) Unlock(userID int64) {
	ul.mapMutex.Lock()
	l := ul.userLocks[userID]
	if l == nil {
		ul.mapMutex.Unlock()
		return
	}
	l.waiters--
	if l.waiters == 0 {
		delete(ul.userLocks, userID)
	}
	ul.mapMutex.Unlock()

	l.mu.Unlock()
}

// Len returns the number of users currently holding or waiting for a lock
func (ul *UserLocks) Len() int {
	ul.mapMutex.Lock()
	defer ul.mapMutex.Unlock()
	return len(ul.userLocks)
}
