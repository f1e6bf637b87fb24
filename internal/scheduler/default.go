package scheduler

import (
	"fmt"
	"sync"
)

var (
	defaultMu        sync.Mutex
	defaultScheduler *Scheduler
	defaultLoaded    bool
)

// Default returns the process-wide shared scheduler, creating it on first
// use. Round-robin fairness is computed over every context registered on the
// same scheduler, so collaborators that want to interleave fairly with each
// other must share this instance.
//
// The shared scheduler lives for the whole process, there is no teardown.
func Default() *Scheduler {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if !defaultLoaded {
		s, err := New(Config{})
		if err != nil {
			// An empty config can't be invalid.
			panic(fmt.Sprintf("default scheduler: %v", err))
		}
		defaultScheduler = s
		defaultLoaded = true
	}

	return defaultScheduler
}
