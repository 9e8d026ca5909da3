////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package internal

// firstTimeSignal.go contains the logic for a channel that can only be sent
// to once

import (
	"context"
	"fmt"
	"sync"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

// FirstTime is a one-shot signal
type FirstTime struct {
	c chan struct{}
	sync.Once
}

// NewFirstTime is a constructor of the FirstTime object
func NewFirstTime() *FirstTime {
	return &FirstTime{
		c: make(chan struct{}),
	}
}

// Send fires the signal. Later calls do nothing.
func (ft *FirstTime) Send() {
	ft.Once.Do(func() {
		close(ft.c)
	})
}

// Receive waits until the signal fires or ctx is done. Logs a warning every
// logEvery while it is still waiting.
func (ft *FirstTime) Receive(ctx context.Context, logEvery time.Duration,
	reason string) error {
	logMessage := fmt.Sprintf("Waiting on %s to continue", reason)
	jww.DEBUG.Print(logMessage)
	ticker := time.NewTicker(logEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ft.c:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			jww.WARN.Print(logMessage)
		}
	}
}
