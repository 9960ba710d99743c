// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"fmt"
	"time"
)

// LoopWork returns work that sleeps step, iterations times, polling for
// cancellation and reporting progress after each step. When all steps ran
// it returns finish(). A nil finish yields the iteration count.
func LoopWork(iterations int, step time.Duration, finish func() (interface{}, error)) WorkFunc {
	return func(ctl *Control) (interface{}, error) {
		for i := 0; i < iterations; i++ {
			if !ctl.Sleep(step) {
				return nil, ErrCanceled
			}
			ctl.Progress(Progress{
				Percent: (i + 1) * 100 / iterations,
				Message: fmt.Sprintf("step %d/%d", i+1, iterations),
				Value:   i + 1,
			})
		}
		if ctl.Canceled() {
			return nil, ErrCanceled
		}
		if finish == nil {
			return iterations, nil
		}
		return finish()
	}
}
