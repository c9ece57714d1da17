// Package reentrant provides a mutex that may be re-acquired by the
// goroutine already holding it.
package reentrant

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// Mutex is a reentrant mutual exclusion lock. The zero value is unlocked.
// A goroutine holding the lock may lock it again without blocking; Unlock
// must be called once per Lock. Unlike sync.Mutex, Unlock from a goroutine
// that does not hold the lock panics.
type Mutex struct {
	mu    sync.Mutex
	owner atomic.Uint64
	depth int
}

func New() *Mutex {
	return &Mutex{}
}

func (m *Mutex) Lock() {
	id := goroutineID()
	if m.owner.Load() == id {
		m.depth++
		return
	}
	m.mu.Lock()
	m.owner.Store(id)
	m.depth = 1
}

func (m *Mutex) Unlock() {
	id := goroutineID()
	if m.owner.Load() != id {
		panic("reentrant: unlock of mutex held by another goroutine")
	}
	m.depth--
	if m.depth == 0 {
		m.owner.Store(0)
		m.mu.Unlock()
	}
}

// goroutineID extracts the current goroutine id from the stack header,
// which has the form "goroutine 18 [running]:". Goroutine ids start at 1,
// so 0 is free to mean "no owner".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := buf[:n]
	s = bytes.TrimPrefix(s, []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	id, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		panic("reentrant: cannot parse goroutine id: " + err.Error())
	}
	return id
}
