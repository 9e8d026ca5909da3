////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package oracle is an in-process threshold decryption oracle. It accepts
// decryption jobs, decrypts them off the ledger path with every key share,
// signs the result and answers through a Handler in a later, independent
// call.
package oracle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/internal/request"
)

// Handler receives the oracle's answers
type Handler interface {
	OnRecordDecrypted(ctx context.Context, requestID uint64, cleartexts, proof []byte) error
	OnGroupDecrypted(ctx context.Context, requestID uint64, cleartexts, proof []byte) error
}

// Params configures the oracle workers
type Params struct {
	Workers   int
	QueueSize int
	// Wait before answering each job
	CallbackDelay time.Duration
}

// Oracle decrypts queued jobs and calls back the registered Handler
type Oracle struct {
	keys   *cryptops.KeyFile
	params Params

	queue  Queue
	nextID *uint64

	handler Handler
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running *uint32
	mux     sync.Mutex
}

// New builds an oracle from a key file holding the key shares and the
// signing key
func New(keys *cryptops.KeyFile, params Params) (*Oracle, error) {
	if keys == nil || len(keys.Shares) == 0 || keys.OracleKey == nil {
		return nil, errors.New("Oracle needs a key file with key shares " +
			"and a signing key")
	}
	return newOracle(keys, params), nil
}

// NewExternal builds an oracle that only queues jobs. A decrypter outside
// the node takes them with Take and answers through the ledger API.
func NewExternal(params Params) *Oracle {
	return newOracle(nil, params)
}

func newOracle(keys *cryptops.KeyFile, params Params) *Oracle {
	if params.Workers <= 0 {
		params.Workers = 1
	}
	if params.QueueSize <= 0 {
		params.QueueSize = 1
	}

	// ids continue from the clock so a restarted oracle does not reissue
	// ids still pending in storage
	seed := uint64(time.Now().UnixNano())
	running := uint32(0)
	return &Oracle{
		keys:    keys,
		params:  params,
		queue:   NewQueue(params.QueueSize),
		nextID:  &seed,
		running: &running,
	}
}

// RequestDecryption accepts the handles for decryption and returns the
// fresh, nonzero request id their answer will carry
func (o *Oracle) RequestDecryption(kind request.Kind, handles []cryptops.Handle) (uint64, error) {
	if err := checkJob(kind, handles); err != nil {
		return 0, err
	}

	id := atomic.AddUint64(o.nextID, 1)
	if id == 0 {
		id = atomic.AddUint64(o.nextID, 1)
	}
	if err := o.enqueue(id, kind, handles); err != nil {
		return 0, err
	}

	jww.DEBUG.Printf("Oracle accepted %s request %d", kind, id)
	return id, nil
}

// Resubmit queues a request again under an id the oracle assigned before,
// for requests that were pending when the node last stopped
func (o *Oracle) Resubmit(requestID uint64, kind request.Kind,
	handles []cryptops.Handle) error {
	if requestID == 0 {
		return errors.New("Cannot resubmit request id 0")
	}
	if err := checkJob(kind, handles); err != nil {
		return err
	}
	if err := o.enqueue(requestID, kind, handles); err != nil {
		return err
	}

	jww.DEBUG.Printf("Oracle requeued %s request %d", kind, requestID)
	return nil
}

func checkJob(kind request.Kind, handles []cryptops.Handle) error {
	if kind >= request.NUM_KIND {
		return errors.Errorf("Cannot decrypt for kind %s", kind)
	}
	if len(handles) != kind.Handles() {
		return errors.Errorf("A %s decryption needs %d handles, got %d",
			kind, kind.Handles(), len(handles))
	}
	return nil
}

func (o *Oracle) enqueue(id uint64, kind request.Kind, handles []cryptops.Handle) error {
	hs := make([]cryptops.Handle, len(handles))
	copy(hs, handles)
	return o.queue.Send(&Job{
		RequestID: id,
		Kind:      kind,
		Handles:   hs,
		Queued:    time.Now(),
	})
}

// Start launches the workers, which answer through handler until ctx is
// done or Stop is called
func (o *Oracle) Start(ctx context.Context, handler Handler) error {
	o.mux.Lock()
	defer o.mux.Unlock()

	if o.keys == nil {
		return errors.New("An external oracle has no keys to decrypt with")
	}
	if !atomic.CompareAndSwapUint32(o.running, 0, 1) {
		return errors.New("Oracle is already running")
	}

	ctx, o.cancel = context.WithCancel(ctx)
	o.handler = handler
	for i := 0; i < o.params.Workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx, i)
	}

	jww.INFO.Printf("Oracle started with %d workers", o.params.Workers)
	return nil
}

// Stop halts the workers and waits up to timeout for them to exit. Queued
// jobs stay queued.
func (o *Oracle) Stop(timeout time.Duration) error {
	o.mux.Lock()
	defer o.mux.Unlock()

	if !atomic.CompareAndSwapUint32(o.running, 1, 0) {
		return nil
	}
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		jww.INFO.Printf("Oracle stopped")
		return nil
	case <-time.After(timeout):
		return errors.Errorf("Oracle workers did not stop after %s", timeout)
	}
}

// Take dequeues up to max jobs without blocking
func (o *Oracle) Take(max int) []*Job {
	jobs := make([]*Job, 0)
	for len(jobs) < max {
		j, err := o.queue.Receive()
		if err != nil {
			break
		}
		jobs = append(jobs, j)
	}
	if len(jobs) > 0 {
		jww.DEBUG.Printf("Handed out %d jobs, %d left", len(jobs), len(o.queue))
	}
	return jobs
}

// Pending returns the number of queued jobs
func (o *Oracle) Pending() int {
	return len(o.queue)
}

func (o *Oracle) worker(ctx context.Context, n int) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-o.queue:
			if o.params.CallbackDelay > 0 {
				select {
				case <-time.After(o.params.CallbackDelay):
				case <-ctx.Done():
					// put it back for the next start
					if err := o.queue.Send(job); err != nil {
						jww.ERROR.Printf("Oracle worker %d: %+v", n, err)
					}
					return
				}
			}
			o.process(ctx, job)
		}
	}
}

// process decrypts one job and delivers the answer
func (o *Oracle) process(ctx context.Context, job *Job) {
	cleartexts, proof, err := cryptops.DecryptAndProve(o.keys, job.RequestID,
		job.Handles)
	if err != nil {
		jww.ERROR.Printf("Oracle could not decrypt %s request %d: %+v",
			job.Kind, job.RequestID, err)
		return
	}

	switch job.Kind {
	case request.Record:
		err = o.handler.OnRecordDecrypted(ctx, job.RequestID, cleartexts, proof)
	case request.Group:
		err = o.handler.OnGroupDecrypted(ctx, job.RequestID, cleartexts, proof)
	}

	if err != nil {
		jww.WARN.Printf("Callback for %s request %d was rejected: %+v",
			job.Kind, job.RequestID, err)
		return
	}
	jww.INFO.Printf("Answered %s request %d in %s", job.Kind, job.RequestID,
		time.Since(job.Queued))
}
