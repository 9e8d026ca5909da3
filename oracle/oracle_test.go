////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package oracle

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/internal/request"
)

var testKeys *cryptops.KeyFile

func TestMain(m *testing.M) {
	var err error
	testKeys, err = cryptops.GenerateKeys(512, 2)
	if err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type answer struct {
	kind       request.Kind
	requestID  uint64
	cleartexts []byte
	proof      []byte
}

// mockHandler records every callback it receives
type mockHandler struct {
	answers chan answer
	reject  bool
}

func newMockHandler() *mockHandler {
	return &mockHandler{answers: make(chan answer, 10)}
}

func (m *mockHandler) OnRecordDecrypted(_ context.Context, requestID uint64,
	cleartexts, proof []byte) error {
	m.answers <- answer{request.Record, requestID, cleartexts, proof}
	if m.reject {
		return errors.New("rejected")
	}
	return nil
}

func (m *mockHandler) OnGroupDecrypted(_ context.Context, requestID uint64,
	cleartexts, proof []byte) error {
	m.answers <- answer{request.Group, requestID, cleartexts, proof}
	return nil
}

func encrypt(t *testing.T, values ...uint32) []cryptops.Handle {
	p := cryptops.NewPaillier(testKeys.PublicKey)
	handles := make([]cryptops.Handle, len(values))
	for i, v := range values {
		h, err := p.Encrypt(v)
		if err != nil {
			t.Fatalf("Failed to encrypt: %+v", err)
		}
		handles[i] = h
	}
	return handles
}

func receive(t *testing.T, h *mockHandler) answer {
	select {
	case a := <-h.answers:
		return a
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for the oracle to answer")
	}
	return answer{}
}

// Tests that an accepted record job is answered with a verifiable bundle
func TestOracle_RecordRoundTrip(t *testing.T) {
	o, err := New(testKeys, Params{Workers: 2, QueueSize: 4})
	if err != nil {
		t.Fatalf("New() errored: %+v", err)
	}
	h := newMockHandler()
	if err = o.Start(context.Background(), h); err != nil {
		t.Fatalf("Start() errored: %+v", err)
	}
	defer o.Stop(time.Second)

	handles := encrypt(t, 10, 20, 5, 9000)
	id, err := o.RequestDecryption(request.Record, handles)
	if err != nil {
		t.Fatalf("RequestDecryption() errored: %+v", err)
	}
	if id == 0 {
		t.Errorf("RequestDecryption() issued the reserved id 0")
	}

	a := receive(t, h)
	if a.kind != request.Record || a.requestID != id {
		t.Errorf("Answer went to the wrong callback: %v %d", a.kind, a.requestID)
	}

	v := cryptops.NewThresholdVerifier(testKeys.Public())
	if err = v.Verify(id, handles, a.cleartexts, a.proof); err != nil {
		t.Errorf("Oracle answer did not verify: %+v", err)
	}
	values, _ := cryptops.DecodeCleartexts(a.cleartexts, 4)
	if values[3] != 9000 {
		t.Errorf("Wrong altitude\n\texpected: %d\n\treceived: %d", 9000, values[3])
	}
}

// Tests that group jobs are routed to the group callback
func TestOracle_Group(t *testing.T) {
	o, _ := New(testKeys, Params{Workers: 1, QueueSize: 1})
	h := newMockHandler()
	_ = o.Start(context.Background(), h)
	defer o.Stop(time.Second)

	id, err := o.RequestDecryption(request.Group, encrypt(t, 3, 4))
	if err != nil {
		t.Fatalf("RequestDecryption() errored: %+v", err)
	}
	a := receive(t, h)
	if a.kind != request.Group || a.requestID != id {
		t.Errorf("Answer went to the wrong callback: %v %d", a.kind, a.requestID)
	}
}

// Tests that ids are unique across concurrent requests
func TestOracle_RequestDecryption_UniqueIDs(t *testing.T) {
	o, _ := New(testKeys, Params{QueueSize: 100})
	handles := encrypt(t, 1, 2)

	var mux sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := o.RequestDecryption(request.Group, handles)
			if err != nil {
				t.Errorf("RequestDecryption() errored: %+v", err)
				return
			}
			mux.Lock()
			if seen[id] {
				t.Errorf("Id %d issued twice", id)
			}
			seen[id] = true
			mux.Unlock()
		}()
	}
	wg.Wait()

	if o.Pending() != 50 {
		t.Errorf("Pending() wrong\n\texpected: %d\n\treceived: %d", 50, o.Pending())
	}
}

// Tests the ways a request can be refused
func TestOracle_RequestDecryption_Errors(t *testing.T) {
	o, _ := New(testKeys, Params{QueueSize: 1})

	if _, err := o.RequestDecryption(request.Record, encrypt(t, 1, 2)); err == nil {
		t.Errorf("RequestDecryption() accepted 2 handles for a record")
	}
	if _, err := o.RequestDecryption(request.NUM_KIND, nil); err == nil {
		t.Errorf("RequestDecryption() accepted an invalid kind")
	}

	handles := encrypt(t, 1, 2)
	if _, err := o.RequestDecryption(request.Group, handles); err != nil {
		t.Fatalf("RequestDecryption() errored: %+v", err)
	}
	if _, err := o.RequestDecryption(request.Group, handles); err == nil {
		t.Errorf("RequestDecryption() accepted a job into a full queue")
	}
}

// Tests that a delayed oracle answers only after the delay
func TestOracle_CallbackDelay(t *testing.T) {
	delay := 50 * time.Millisecond
	o, _ := New(testKeys, Params{Workers: 1, QueueSize: 1, CallbackDelay: delay})
	h := newMockHandler()
	_ = o.Start(context.Background(), h)
	defer o.Stop(time.Second)

	start := time.Now()
	_, _ = o.RequestDecryption(request.Group, encrypt(t, 1, 1))
	receive(t, h)
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("Answered before the delay\n\texpected: >%s\n\treceived: %s",
			delay, elapsed)
	}
}

// Tests that a rejected callback does not stop the worker
func TestOracle_RejectedCallback(t *testing.T) {
	o, _ := New(testKeys, Params{Workers: 1, QueueSize: 2})
	h := newMockHandler()
	h.reject = true
	_ = o.Start(context.Background(), h)
	defer o.Stop(time.Second)

	_, _ = o.RequestDecryption(request.Record, encrypt(t, 1, 2, 3, 4))
	_, _ = o.RequestDecryption(request.Record, encrypt(t, 5, 6, 7, 8))
	receive(t, h)
	receive(t, h)
}

// Tests the worker lifecycle
func TestOracle_StartStop(t *testing.T) {
	o, _ := New(testKeys, Params{})
	h := newMockHandler()

	if err := o.Start(context.Background(), h); err != nil {
		t.Fatalf("Start() errored: %+v", err)
	}
	if err := o.Start(context.Background(), h); err == nil {
		t.Errorf("Start() succeeded on a running oracle")
	}
	if err := o.Stop(time.Second); err != nil {
		t.Errorf("Stop() errored: %+v", err)
	}
	if err := o.Stop(time.Second); err != nil {
		t.Errorf("Second Stop() errored: %+v", err)
	}

	// jobs queued while stopped are answered after a restart
	id, _ := o.RequestDecryption(request.Group, encrypt(t, 1, 1))
	if err := o.Start(context.Background(), h); err != nil {
		t.Fatalf("Restart errored: %+v", err)
	}
	defer o.Stop(time.Second)
	if a := receive(t, h); a.requestID != id {
		t.Errorf("Wrong answer after restart\n\texpected: %d\n\treceived: %d",
			id, a.requestID)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, Params{}); err == nil {
		t.Errorf("New() accepted a nil key file")
	}
	if _, err := New(testKeys.Public(), Params{}); err == nil {
		t.Errorf("New() accepted a key file without secrets")
	}
}

func TestQueue(t *testing.T) {
	q := NewQueue(1)
	if _, err := q.Receive(); err == nil {
		t.Errorf("Receive() on an empty queue succeeded")
	}
	if err := q.Send(&Job{RequestID: 1}); err != nil {
		t.Errorf("Send() errored: %+v", err)
	}
	if err := q.Send(&Job{RequestID: 2}); err == nil {
		t.Errorf("Send() into a full queue succeeded")
	}
	if j, err := q.Receive(); err != nil || j.RequestID != 1 {
		t.Errorf("Receive() returned the wrong job: %+v %v", j, err)
	}
}

func TestNewExternal_Take(t *testing.T) {
	o := NewExternal(Params{QueueSize: 4})
	if err := o.Start(context.Background(), newMockHandler()); err == nil {
		t.Errorf("An external oracle started decrypting")
	}

	var ids []uint64
	for n := 0; n < 3; n++ {
		id, err := o.RequestDecryption(request.Group, encrypt(t, 1, 2))
		if err != nil {
			t.Fatalf("RequestDecryption() errored: %+v", err)
		}
		ids = append(ids, id)
	}

	first := o.Take(2)
	rest := o.Take(10)
	if len(first) != 2 || len(rest) != 1 {
		t.Fatalf("Take() split wrong\n\texpected: %v, %v\n\treceived: %v, %v",
			2, 1, len(first), len(rest))
	}
	for n, j := range append(first, rest...) {
		if j.RequestID != ids[n] || j.Kind != request.Group || len(j.Handles) != 2 {
			t.Errorf("Job %d wrong: %+v", n, j)
		}
	}
	if jobs := o.Take(5); len(jobs) != 0 || o.Pending() != 0 {
		t.Errorf("Queue not drained: %d jobs, %d pending", len(jobs), o.Pending())
	}
}

// Tests that a resubmitted job is answered under its original id, even when
// queued before the workers start
func TestOracle_Resubmit(t *testing.T) {
	o, err := New(testKeys, Params{Workers: 1, QueueSize: 1})
	if err != nil {
		t.Fatalf("New() errored: %+v", err)
	}

	handles := encrypt(t, 3, 4, 5, 6000)
	if err = o.Resubmit(77, request.Record, handles); err != nil {
		t.Fatalf("Resubmit() errored: %+v", err)
	}
	if err = o.Resubmit(78, request.Record, handles); err == nil {
		t.Errorf("Resubmit() overflowed the queue")
	}

	h := newMockHandler()
	if err = o.Start(context.Background(), h); err != nil {
		t.Fatalf("Start() errored: %+v", err)
	}
	defer o.Stop(time.Second)

	a := receive(t, h)
	if a.kind != request.Record || a.requestID != 77 {
		t.Fatalf("Answer wrong\n\texpected: %v %d\n\treceived: %v %d",
			request.Record, 77, a.kind, a.requestID)
	}
	v := cryptops.NewThresholdVerifier(testKeys.Public())
	if err = v.Verify(77, handles, a.cleartexts, a.proof); err != nil {
		t.Errorf("Resubmitted answer did not verify: %+v", err)
	}
}

func TestOracle_Resubmit_Errors(t *testing.T) {
	o := NewExternal(Params{QueueSize: 4})
	handles := encrypt(t, 1, 2)

	if err := o.Resubmit(0, request.Group, handles); err == nil {
		t.Errorf("Resubmit() accepted the reserved id 0")
	}
	if err := o.Resubmit(5, request.Record, handles); err == nil {
		t.Errorf("Resubmit() accepted a record with two handles")
	}
	if err := o.Resubmit(5, request.NUM_KIND, handles); err == nil {
		t.Errorf("Resubmit() accepted an invalid kind")
	}
	if o.Pending() != 0 {
		t.Errorf("Rejected resubmissions were queued: %d", o.Pending())
	}

	if err := o.Resubmit(5, request.Group, handles); err != nil {
		t.Fatalf("Resubmit() errored: %+v", err)
	}
	if jobs := o.Take(4); len(jobs) != 1 || jobs[0].RequestID != 5 {
		t.Errorf("Take() after Resubmit() wrong: %+v", jobs)
	}
}
