////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package internal

import (
	"context"
	"testing"
	"time"
)

// Tests that sending works only on the first try
func TestFirstTime_Send(t *testing.T) {
	ft := NewFirstTime()

	ft.Send()
	select {
	case <-ft.c:
	case <-time.After(time.Millisecond):
		t.Errorf("First time send did not occur")
	}

	// a second send must not panic on the closed channel
	ft.Send()
}

// Tests that receiving works and waits until the send occurs
func TestFirstTime_Receive(t *testing.T) {
	ft := NewFirstTime()

	received := make(chan error)
	go func() {
		received <- ft.Receive(context.Background(), 10*time.Millisecond, "test")
	}()

	select {
	case <-time.After(50 * time.Millisecond):
	case <-received:
		t.Errorf("receive should not have happened, send has not called")
	}

	ft.Send()

	select {
	case <-time.After(time.Second):
		t.Errorf("receive after send timed out")
	case err := <-received:
		if err != nil {
			t.Errorf("Receive() errored: %+v", err)
		}
	}
}

// Tests that a cancelled context ends the wait
func TestFirstTime_Receive_Cancel(t *testing.T) {
	ft := NewFirstTime()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := ft.Receive(ctx, time.Second, "test"); err == nil {
		t.Errorf("Receive() returned without a send")
	}
}
