// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"sync"
	"sync/atomic"
)

// throttle runs functions in goroutines, at most Max at a time, and
// remembers the first error.
type throttle struct {
	Max       int
	wg        sync.WaitGroup
	ch        chan bool
	err       atomic.Value
	failed    int64
	setupOnce sync.Once
	errorOnce sync.Once
}

func (t *throttle) Go(fn func() error) {
	t.setupOnce.Do(func() {
		if t.Max < 1 {
			t.Max = 1
		}
		t.ch = make(chan bool, t.Max)
	})
	t.wg.Add(1)
	t.ch <- true
	go func() {
		defer func() {
			<-t.ch
			t.wg.Done()
		}()
		t.Report(fn())
	}()
}

func (t *throttle) Report(err error) {
	if err != nil {
		atomic.AddInt64(&t.failed, 1)
		t.errorOnce.Do(func() { t.err.Store(err) })
	}
}

func (t *throttle) Err() error {
	err, _ := t.err.Load().(error)
	return err
}

// Failed returns the number of errors reported so far.
func (t *throttle) Failed() int {
	return int(atomic.LoadInt64(&t.failed))
}

func (t *throttle) Wait() error {
	t.wg.Wait()
	return t.Err()
}
