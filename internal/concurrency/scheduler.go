// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wall-clock scheduler backed by runtime timers.

package concurrency

import (
	"time"

	"github.com/momentics/hioload-stomp/api"
)

var _ api.Scheduler = SystemScheduler{}

// SystemScheduler implements api.Scheduler with time.AfterFunc.
type SystemScheduler struct{}

func (SystemScheduler) AfterFunc(d time.Duration, fn func()) api.Cancelable {
	return time.AfterFunc(d, fn)
}

func (SystemScheduler) Now() time.Time {
	return time.Now()
}
