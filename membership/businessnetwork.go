/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package membership

import (
	"fmt"

	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
)

// BusinessNetwork identifies a business network and its operator (BNO).
//
// Two business networks are the same when their ids match, regardless of the operator
// identity they carry.
type BusinessNetwork struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Operator Party  `json:"operator"`
}

// NewBusinessNetwork returns a business network with a fresh id.
func NewBusinessNetwork(name string, operator Party) (BusinessNetwork, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return BusinessNetwork{}, errors.Wrap(err, "failed generating business network id")
	}
	return BusinessNetwork{ID: id, Name: name, Operator: operator}, nil
}

// ValidateID checks that id is a well-formed UUID.
func ValidateID(id string) error {
	if _, err := uuid.ParseUUID(id); err != nil {
		return errors.Wrapf(err, "invalid business network id [%s]", id)
	}
	return nil
}

func (bn BusinessNetwork) Equal(o BusinessNetwork) bool {
	return bn.ID == o.ID
}

func (bn BusinessNetwork) HasDifferentOperator(o BusinessNetwork) bool {
	return bn.Equal(o) && !bn.Operator.Equal(o.Operator)
}

func (bn BusinessNetwork) HasDifferentName(o BusinessNetwork) bool {
	return bn.Equal(o) && bn.DisplayName() != o.DisplayName()
}

// DisplayName returns the configured name, or the operator name when none is set.
func (bn BusinessNetwork) DisplayName() string {
	if len(bn.Name) != 0 {
		return bn.Name
	}
	return bn.Operator.Name
}

func (bn BusinessNetwork) String() string {
	return fmt.Sprintf("%s(%s)", bn.DisplayName(), bn.ID)
}
