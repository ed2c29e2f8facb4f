package storage

import (
	"os"
	"sync"
	"syscall"
)

// lockTable hands out one exclusive lock per document path. Writers in this
// process queue on a mutex; writers in other processes are excluded with
// flock on a sidecar file. Entries are dropped once nobody holds or waits
// for them, so the table does not grow with every session ever written.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*pathLock)}
}

// acquire blocks until path is exclusively held and returns the release
// func.
func (t *lockTable) acquire(path string) (func(), error) {
	t.mu.Lock()
	l, ok := t.locks[path]
	if !ok {
		l = &pathLock{}
		t.locks[path] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err == nil {
		if err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
			f.Close()
		}
	}
	if err != nil {
		l.mu.Unlock()
		t.release(path, l)
		return nil, err
	}

	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		os.Remove(path + ".lock")
		l.mu.Unlock()
		t.release(path, l)
	}, nil
}

func (t *lockTable) release(path string, l *pathLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, path)
	}
}

// held returns the number of paths with a holder or waiter.
func (t *lockTable) held() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
