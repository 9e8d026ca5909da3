////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

// oracle.go runs the decrypter for nodes configured with an external oracle.
// It polls the node for jobs and posts signed answers back.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/internal/request"
	"gitlab.com/elixxir/plume/io"
)

var oracleNode string
var oracleKeys string
var oracleInterval time.Duration
var oracleLimit int

func init() {
	rootCmd.AddCommand(oracleCmd)

	oracleCmd.Flags().StringVarP(&oracleNode, "node", "n",
		"http://127.0.0.1:11420", "Base URL of the ledger node")
	oracleCmd.Flags().StringVarP(&oracleKeys, "keys", "k", "keys.json",
		"Full key file holding the key shares and signing key")
	oracleCmd.Flags().DurationVar(&oracleInterval, "interval", time.Second,
		"How often to poll for jobs")
	oracleCmd.Flags().IntVar(&oracleLimit, "limit", 16,
		"Most jobs taken per poll")
}

var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Decrypt jobs for a node running with an external oracle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := cryptops.LoadKeys(oracleKeys)
		if err != nil {
			return err
		}
		if len(keys.Shares) == 0 || keys.OracleKey == nil {
			return errors.Errorf("Key file %s holds no key shares", oracleKeys)
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			sig := <-ReceiveExitSignal()
			jww.INFO.Printf("Received %s, stopping oracle", sig)
			cancel()
		}()

		d := &decrypter{
			node:   strings.TrimRight(oracleNode, "/"),
			keys:   keys,
			client: &http.Client{Timeout: 30 * time.Second},
		}
		d.run(ctx, oracleInterval, oracleLimit)
		return nil
	},
}

// decrypter answers a node's queued jobs over its API
type decrypter struct {
	node   string
	keys   *cryptops.KeyFile
	client *http.Client
}

func (d *decrypter) run(ctx context.Context, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := d.poll(ctx, limit)
		if err != nil {
			jww.ERROR.Printf("Poll of %s failed: %+v", d.node, err)
		} else if n > 0 {
			jww.INFO.Printf("Answered %d jobs", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll takes one batch of jobs and answers each, returning how many answers
// the node accepted
func (d *decrypter) poll(ctx context.Context, limit int) (int, error) {
	jobs := &io.JobsResponse{}
	url := fmt.Sprintf("%s/oracle/jobs?limit=%d", d.node, limit)
	if err := d.do(ctx, http.MethodGet, url, nil, jobs); err != nil {
		return 0, err
	}

	accepted := 0
	for _, job := range jobs.Jobs {
		cleartexts, proof, err := cryptops.DecryptAndProve(d.keys,
			job.RequestID, job.Handles)
		if err != nil {
			jww.ERROR.Printf("Could not decrypt request %d: %+v",
				job.RequestID, err)
			continue
		}

		route := "record"
		if job.Kind == request.Group {
			route = "group"
		}
		msg := &io.CallbackMessage{
			RequestID:  job.RequestID,
			Cleartexts: cleartexts,
			Proof:      proof,
		}
		err = d.do(ctx, http.MethodPost, d.node+"/callbacks/"+route, msg, nil)
		if err != nil {
			jww.WARN.Printf("Answer to %s request %d refused: %+v", job.Kind,
				job.RequestID, err)
			continue
		}
		accepted++
	}
	return accepted, nil
}

func (d *decrypter) do(ctx context.Context, method, url string, body,
	out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return errors.Wrap(err, "Could not encode request")
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return errors.Wrapf(err, "Could not build request to %s", url)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		failure := &io.ErrorResponse{}
		_ = json.NewDecoder(resp.Body).Decode(failure)
		return errors.Errorf("%s %s returned %d: %s", method, url,
			resp.StatusCode, failure.Error)
	}
	if out == nil {
		return nil
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(out),
		"Could not decode reply from %s", url)
}
