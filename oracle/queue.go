////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package oracle

// queue.go contains the bounded job queue between the ledger and the oracle
// workers

import (
	"time"

	"github.com/pkg/errors"
	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/internal/request"
)

// Job is one decryption the oracle has accepted
type Job struct {
	RequestID uint64            `json:"requestId"`
	Kind      request.Kind      `json:"kind"`
	Handles   []cryptops.Handle `json:"handles"`
	Queued    time.Time         `json:"queued"`
}

// Queue is a bounded channel of jobs
type Queue chan *Job

// NewQueue builds a queue holding at most size jobs
func NewQueue(size int) Queue {
	return make(Queue, size)
}

// Send enqueues a job without blocking, erroring if the queue is full
func (q Queue) Send(j *Job) error {
	select {
	case q <- j:
		return nil
	default:
		return errors.Errorf("Oracle queue full at len %v, request %d "+
			"dropped", len(q), j.RequestID)
	}
}

// Receive dequeues a job without blocking, erroring if the queue is empty
func (q Queue) Receive() (*Job, error) {
	select {
	case j := <-q:
		return j, nil
	default:
		return nil, errors.New("Did not receive a job")
	}
}
