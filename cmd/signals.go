////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// signals.go handles signals specific to the ledger node:
//   - SIGUSR1, which logs a snapshot of the ledger
//   - SIGTERM/SIGINT, which stop the node and exit

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	jww "github.com/spf13/jwalterweatherman"
)

// ReceiveSignal calls sigFn every time one of sigs arrives, until ctx is
// done
func ReceiveSignal(ctx context.Context, sigFn func(), sigs ...os.Signal) {
	// Buffered so a signal sent before the loop is waiting is kept
	c := make(chan os.Signal, 1)
	signal.Notify(c, sigs...)

	go func() {
		defer signal.Stop(c)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-c:
				jww.INFO.Printf("Received %s signal...", sig)
				sigFn()
			}
		}
	}()
}

// ReceiveExitSignal returns a channel that receives SIGTERM and SIGINT
func ReceiveExitSignal() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	return c
}
