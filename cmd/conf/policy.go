////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conf

import (
	"github.com/pkg/errors"
	"gitlab.com/elixxir/plume/permissioning"
)

// Modes of the caller policy
const (
	PolicyAllowAll  = "allowAll"
	PolicyAllowList = "allowList"
)

// Policy contains the config params for the caller policy. An allow list is
// read from Path when set, otherwise from List. Viper lowercases map keys, so
// group restrictions on keys with upper case letters belong in a Path file.
type Policy struct {
	Mode string
	Path string
	List permissioning.AllowListConfig
}

// Build returns the permissioning.Policy the params describe
func (p Policy) Build() (permissioning.Policy, error) {
	switch p.Mode {
	case PolicyAllowAll:
		return permissioning.AllowAll{}, nil
	case PolicyAllowList:
		if p.Path != "" {
			return permissioning.LoadAllowList(p.Path)
		}
		return permissioning.NewAllowList(p.List), nil
	default:
		return nil, errors.Errorf("Unknown policy mode %q", p.Mode)
	}
}
