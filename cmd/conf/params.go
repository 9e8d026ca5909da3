////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conf

import (
	"net"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// Defaults for optional params
const (
	defaultListeningAddress = "0.0.0.0:11420"
	defaultLogPath          = "./plume.log"
	defaultWorkers          = 4
	defaultQueueSize        = 1024
	defaultTTL              = 10 * time.Minute
	defaultSweepInterval    = 30 * time.Second
)

// This object is used by the ledger node.
// It should be constructed using a viper object
type Params struct {
	Node     Node
	Database Database
	Oracle   Oracle
	Requests Requests
	Policy   Policy

	DevMode bool
}

// NewParams gets elements of the viper object
// and updates the params object. It returns params
// unless it fails to parse in which it case returns error
func NewParams(vip *viper.Viper) (*Params, error) {
	var err error

	var require = func(s string, key string) {
		if s == "" && err == nil {
			err = errors.Errorf("%s must be set in params", key)
		}
	}

	params := Params{}

	params.Node.ListeningAddress = vip.GetString("node.listeningAddress")
	if params.Node.ListeningAddress == "" {
		params.Node.ListeningAddress = defaultListeningAddress
	}
	if _, _, splitErr := net.SplitHostPort(params.Node.ListeningAddress); splitErr != nil {
		return nil, errors.Wrapf(splitErr, "Invalid node.listeningAddress %q",
			params.Node.ListeningAddress)
	}

	params.Node.Paths.Keys = vip.GetString("node.paths.keys")
	require(params.Node.Paths.Keys, "node.paths.keys")

	params.Node.Paths.Log = vip.GetString("node.paths.log")
	if params.Node.Paths.Log == "" {
		params.Node.Paths.Log = defaultLogPath
	}

	// Obtain database connection info
	rawAddr := vip.GetString("database.address")
	var addr, port string
	if rawAddr != "" {
		var splitErr error
		addr, port, splitErr = net.SplitHostPort(rawAddr)
		if splitErr != nil {
			return nil, errors.Wrapf(splitErr, "Unable to get database port from %s",
				rawAddr)
		}
	}
	params.Database.Name = vip.GetString("database.name")
	params.Database.Username = vip.GetString("database.username")
	params.Database.Password = vip.GetString("database.password")
	params.Database.Address = addr
	params.Database.Port = port
	params.Database.Path = vip.GetString("database.path")

	params.Oracle.Mode = vip.GetString("oracle.mode")
	if params.Oracle.Mode == "" {
		params.Oracle.Mode = OracleInternal
	}
	if params.Oracle.Mode != OracleInternal && params.Oracle.Mode != OracleExternal {
		return nil, errors.Errorf("Unknown oracle.mode %q", params.Oracle.Mode)
	}
	params.Oracle.Workers = vip.GetInt("oracle.workers")
	if params.Oracle.Workers <= 0 {
		params.Oracle.Workers = defaultWorkers
	}
	params.Oracle.QueueSize = vip.GetInt("oracle.queueSize")
	if params.Oracle.QueueSize <= 0 {
		params.Oracle.QueueSize = defaultQueueSize
	}
	params.Oracle.CallbackDelay = vip.GetDuration("oracle.callbackDelay")

	// A ttl of 0 is meaningful, so only an unset key takes the default
	vip.SetDefault("requests.ttl", defaultTTL)
	vip.SetDefault("requests.sweepInterval", defaultSweepInterval)
	params.Requests.TTL = vip.GetDuration("requests.ttl")
	params.Requests.SweepInterval = vip.GetDuration("requests.sweepInterval")
	if params.Requests.TTL < 0 || params.Requests.SweepInterval < 0 {
		return nil, errors.New("requests.ttl and requests.sweepInterval " +
			"cannot be negative")
	}

	params.Policy.Mode = vip.GetString("policy.mode")
	if params.Policy.Mode == "" {
		params.Policy.Mode = PolicyAllowAll
	}
	params.Policy.Path = vip.GetString("policy.path")
	params.Policy.List.Submitters = vip.GetStringSlice("policy.submitters")
	params.Policy.List.Accumulators = vip.GetStringSlice("policy.accumulators")
	params.Policy.List.Requesters = vip.GetStringSlice("policy.requesters")
	params.Policy.List.Groups = vip.GetStringMapStringSlice("policy.groups")
	if len(params.Policy.List.Groups) == 0 {
		params.Policy.List.Groups = nil
	}

	params.DevMode = vip.GetBool("devMode")
	if params.DevMode {
		jww.WARN.Printf("Dev mode is on, the ledger may be kept in memory only")
	}

	if err != nil {
		return nil, err
	}
	return &params, nil
}
