package service

import "sync"

const threadLockStripes = 64

// threadLocks serializes work per thread within one process. A mutation and
// the broadcast of its result run under the same stripe, so events for a
// thread leave in commit order.
type threadLocks struct {
	stripes [threadLockStripes]sync.Mutex
}

func (l *threadLocks) lock(threadID uint) func() {
	m := &l.stripes[threadID%threadLockStripes]
	m.Lock()
	return m.Unlock
}
