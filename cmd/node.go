////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

// node.go contains the initialization and lifecycle of a ledger node

import (
	"context"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"gitlab.com/elixxir/plume/cmd/conf"
	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/internal"
	"gitlab.com/elixxir/plume/io"
	"gitlab.com/elixxir/plume/oracle"
	"gitlab.com/elixxir/plume/storage"
)

// Node is a running ledger node: the ledger instance, its oracle, and the
// HTTP API in front of them
type Node struct {
	params   *conf.Params
	instance *internal.Instance
	oracle   *oracle.Oracle
	storage  *storage.Storage
	server   *http.Server
	addr     string

	cancel context.CancelFunc
	done   chan struct{}
}

// StartServer builds a node from the viper config and starts serving. It
// returns once the API is listening.
func StartServer(vip *viper.Viper) (*Node, error) {
	params, err := conf.NewParams(vip)
	if err != nil {
		return nil, errors.WithMessage(err, "Could not load params")
	}

	keys, err := cryptops.LoadKeys(params.Node.Paths.Keys)
	if err != nil {
		return nil, err
	}

	policy, err := params.Policy.Build()
	if err != nil {
		return nil, errors.WithMessage(err, "Could not build caller policy")
	}

	store, err := storage.NewStorage(params.Database.Username,
		params.Database.Password, params.Database.Name, params.Database.Address,
		params.Database.Port, params.Database.Path, params.DevMode)
	if err != nil {
		return nil, errors.WithMessage(err, "Could not open ledger storage")
	}

	oracleParams := oracle.Params{
		Workers:       params.Oracle.Workers,
		QueueSize:     params.Oracle.QueueSize,
		CallbackDelay: params.Oracle.CallbackDelay,
	}
	var o *oracle.Oracle
	if params.Oracle.Mode == conf.OracleExternal {
		o = oracle.NewExternal(oracleParams)
	} else if o, err = oracle.New(keys, oracleParams); err != nil {
		return nil, errors.WithMessagef(err, "Key file %s cannot run an "+
			"internal oracle", params.Node.Paths.Keys)
	}

	instance, err := internal.CreateInstance(&internal.Definition{
		Storage:       store,
		Evaluator:     cryptops.NewPaillier(keys.PublicKey),
		Verifier:      cryptops.NewThresholdVerifier(keys.Public()),
		Oracle:        o,
		Policy:        policy,
		RequestTTL:    params.Requests.TTL,
		SweepInterval: params.Requests.SweepInterval,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "Could not create ledger instance")
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		params:   params,
		instance: instance,
		oracle:   o,
		storage:  store,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	var jobs io.JobSource
	if params.Oracle.Mode == conf.OracleExternal {
		jobs = o
	} else if err = o.Start(ctx, instance); err != nil {
		cancel()
		return nil, err
	}

	go func() {
		instance.Run(ctx)
		close(n.done)
	}()
	if err = instance.WaitReady(ctx); err != nil {
		cancel()
		return nil, err
	}

	ln, err := net.Listen("tcp", params.Node.ListeningAddress)
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "Could not listen on %s",
			params.Node.ListeningAddress)
	}
	n.addr = ln.Addr().String()
	n.server = &http.Server{
		Handler:           io.NewImplementation(instance, jobs),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := n.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			jww.FATAL.Panicf("Ledger API stopped: %+v", err)
		}
	}()

	ReceiveSignal(ctx, func() {
		jww.INFO.Printf("%s", instance)
	}, syscall.SIGUSR1)

	jww.INFO.Printf("Ledger node listening on %s with a %s oracle", n.addr,
		params.Oracle.Mode)
	return n, nil
}

// GetInstance returns the ledger instance of the node
func (n *Node) GetInstance() *internal.Instance {
	return n.instance
}

// Addr returns the address the API is listening on
func (n *Node) Addr() string {
	return n.addr
}

// Stop shuts down the API, the oracle and the sweeper, then closes storage
func (n *Node) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := n.server.Shutdown(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "API"))
	}
	if err := n.oracle.Stop(timeout); err != nil {
		errs = append(errs, err)
	}
	n.cancel()
	select {
	case <-n.done:
	case <-ctx.Done():
		errs = append(errs, errors.New("Sweeper did not stop in time"))
	}
	if err := n.storage.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "storage"))
	}

	if len(errs) > 0 {
		return errors.Errorf("Node stopped with errors: %v", errs)
	}
	jww.INFO.Printf("Ledger node stopped")
	return nil
}
