////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package permissioning

import (
	"os"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gopkg.in/yaml.v2"
)

// AllowListConfig is the on disk form of an AllowList. An empty list leaves
// its action open to every caller. A group listed under Groups is restricted
// to its callers for every action.
type AllowListConfig struct {
	Submitters   []string            `yaml:"submitters"`
	Accumulators []string            `yaml:"accumulators"`
	Requesters   []string            `yaml:"requesters"`
	Groups       map[string][]string `yaml:"groups"`
}

// AllowList grants actions to listed callers only
type AllowList struct {
	actions [NUM_ACTION]map[Caller]bool
	groups  map[string]map[Caller]bool
}

func toSet(callers []string) map[Caller]bool {
	if len(callers) == 0 {
		return nil
	}
	set := make(map[Caller]bool, len(callers))
	for _, c := range callers {
		set[Caller(c)] = true
	}
	return set
}

// NewAllowList builds an AllowList from its config
func NewAllowList(conf AllowListConfig) *AllowList {
	al := &AllowList{groups: make(map[string]map[Caller]bool)}
	al.actions[Submit] = toSet(conf.Submitters)
	al.actions[Accumulate] = toSet(conf.Accumulators)
	al.actions[RequestDecryption] = toSet(conf.Requesters)
	for key, callers := range conf.Groups {
		// an empty group entry locks the group entirely
		set := toSet(callers)
		if set == nil {
			set = map[Caller]bool{}
		}
		al.groups[key] = set
	}
	return al
}

// LoadAllowList reads an AllowListConfig from a yaml file
func LoadAllowList(path string) (*AllowList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not read allow list %s", path)
	}

	conf := AllowListConfig{}
	if err = yaml.UnmarshalStrict(data, &conf); err != nil {
		return nil, errors.Wrapf(err, "Could not parse allow list %s", path)
	}

	jww.INFO.Printf("Loaded allow list with %d submitters, %d accumulators, "+
		"%d requesters and %d restricted groups", len(conf.Submitters),
		len(conf.Accumulators), len(conf.Requesters), len(conf.Groups))
	return NewAllowList(conf), nil
}

// Authorize implements Policy
func (al *AllowList) Authorize(caller Caller, action Action, groupKey string) error {
	if action >= NUM_ACTION {
		return unauthorized(caller, action, groupKey)
	}
	if set := al.actions[action]; set != nil && !set[caller] {
		return unauthorized(caller, action, groupKey)
	}
	if set, ok := al.groups[groupKey]; ok && !set[caller] {
		return unauthorized(caller, action, groupKey)
	}
	return nil
}
