// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package walker

import "sync/atomic"

// runLock is a non-blocking lock: a second Run fails fast instead of
// queueing behind the first.
type runLock struct {
	state atomic.Int32 // 0 = idle, 1 = running
}

func (l *runLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

func (l *runLock) Release() {
	l.state.Store(0)
}
