////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package request tracks the decryption requests handed to the oracle and
// the target each one resolves to
package request

import (
	"fmt"
	"strconv"
)

// Kind is the type of target a request decrypts
type Kind uint8

const (
	Record = Kind(iota)
	Group
	NUM_KIND
)

// Stringer to get the name of the kind, primarily for for error prints
func (k Kind) String() string {
	switch k {
	case Record:
		return "record"
	case Group:
		return "group"
	default:
		return fmt.Sprintf("UNKNOWN KIND: %d", k)
	}
}

// Handles returns how many ciphertexts a request of this kind carries
func (k Kind) Handles() int {
	switch k {
	case Record:
		return 4
	case Group:
		return 2
	default:
		return 0
	}
}

// Target is what a request decrypts: a record by id or a group by key.
// Only the field matching Kind is set.
type Target struct {
	Kind     Kind
	RecordID uint64
	GroupKey string
}

// RecordTarget builds the target of a record decryption
func RecordTarget(id uint64) Target {
	return Target{Kind: Record, RecordID: id}
}

// GroupTarget builds the target of a group decryption
func GroupTarget(key string) Target {
	return Target{Kind: Group, GroupKey: key}
}

// Key returns the record id or group key as a string
func (t Target) Key() string {
	if t.Kind == Record {
		return strconv.FormatUint(t.RecordID, 10)
	}
	return t.GroupKey
}

func (t Target) String() string {
	return fmt.Sprintf("%s(%s)", t.Kind, t.Key())
}
