package service

import (
	"hash/fnv"
	"sync"
)

// stripedLock serialises work per client over a fixed set of mutexes.
// Two clients may share a stripe; one client always maps to the same one.
type stripedLock struct {
	stripes []sync.Mutex
}

func newStripedLock(n int) *stripedLock {
	if n < 1 {
		n = 1
	}
	return &stripedLock{stripes: make([]sync.Mutex, n)}
}

// lock acquires the stripe for key and returns its release func.
func (l *stripedLock) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &l.stripes[h.Sum32()%uint32(len(l.stripes))]
	m.Lock()
	return m.Unlock
}
