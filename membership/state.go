/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package membership

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
)

// Status of a membership.
//
// Pending memberships have been requested but not approved yet, active members can
// transact on the business network, suspended members cannot but can be activated again.
type Status int

const (
	Pending Status = iota
	Active
	Suspended
)

var statusNames = map[Status]string{
	Pending:   "PENDING",
	Active:    "ACTIVE",
	Suspended: "SUSPENDED",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for k, v := range statusNames {
		if v == s {
			return k, nil
		}
	}
	return Pending, errors.Errorf("unknown membership status [%s]", s)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// LinearID identifies all the versions of a membership state.
type LinearID struct {
	ExternalID string `json:"externalId,omitempty"`
	ID         string `json:"id"`
}

// NewLinearID returns a fresh linear id.
func NewLinearID(externalID string) (LinearID, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return LinearID{}, errors.Wrap(err, "failed generating linear id")
	}
	return LinearID{ExternalID: externalID, ID: id}, nil
}

func (l LinearID) String() string {
	if len(l.ExternalID) == 0 {
		return l.ID
	}
	return l.ExternalID + "_" + l.ID
}

// State is one version of the membership of a party in a business network.
type State struct {
	Member          Party           `json:"member"`
	BusinessNetwork BusinessNetwork `json:"businessNetwork"`
	Metadata        Metadata        `json:"metadata"`
	Issued          time.Time       `json:"issued"`
	Modified        time.Time       `json:"modified"`
	Status          Status          `json:"status"`
	LinearID        LinearID        `json:"linearId"`
}

// NewState returns the first version of a membership, issued now.
func NewState(member Party, bn BusinessNetwork, md Metadata, status Status, now time.Time) (*State, error) {
	id, err := NewLinearID("")
	if err != nil {
		return nil, err
	}
	now = now.UTC()
	return &State{
		Member:          member,
		BusinessNetwork: bn,
		Metadata:        md,
		Issued:          now,
		Modified:        now,
		Status:          status,
		LinearID:        id,
	}, nil
}

// Participants returns the parties that have to know about this state:
// the operator and the member.
func (s *State) Participants() []Party {
	if s.IsOperator() {
		return []Party{s.BusinessNetwork.Operator}
	}
	return []Party{s.BusinessNetwork.Operator, s.Member}
}

// IsOperator reports whether this is the operator's own membership.
func (s *State) IsOperator() bool {
	return s.Member.Equal(s.BusinessNetwork.Operator)
}

func (s *State) IsActive() bool    { return s.Status == Active }
func (s *State) IsPending() bool   { return s.Status == Pending }
func (s *State) IsSuspended() bool { return s.Status == Suspended }

// WithStatus returns the next version of this state with the given status.
func (s *State) WithStatus(status Status, now time.Time) *State {
	next := s.evolve(now)
	next.Status = status
	return next
}

// WithMetadata returns the next version of this state with the given metadata.
func (s *State) WithMetadata(md Metadata, now time.Time) *State {
	next := s.evolve(now)
	next.Metadata = md
	return next
}

// evolve copies the state and moves Modified forward, strictly after the current value.
func (s *State) evolve(now time.Time) *State {
	next := *s
	now = now.UTC()
	if !now.After(s.Modified) {
		now = s.Modified.Add(time.Microsecond)
	}
	next.Modified = now
	return &next
}

func (s *State) String() string {
	return fmt.Sprintf("membership[%s in %s, %s, modified %s]", s.Member, s.BusinessNetwork, s.Status, s.Modified.Format(time.RFC3339Nano))
}

// Projection is the queryable off-ledger view of a membership.
type Projection struct {
	MemberName          string `json:"memberName"`
	BusinessNetworkID   string `json:"businessNetworkId"`
	BusinessNetworkName string `json:"businessNetworkName"`
	OperatorName        string `json:"operatorName"`
	Status              Status `json:"status"`
}

func (s *State) Project() Projection {
	return Projection{
		MemberName:          s.Member.Name,
		BusinessNetworkID:   s.BusinessNetwork.ID,
		BusinessNetworkName: s.BusinessNetwork.Name,
		OperatorName:        s.BusinessNetwork.Operator.Name,
		Status:              s.Status,
	}
}

// StateRef points to an output of a transaction.
type StateRef struct {
	TxID  string `json:"txId"`
	Index int    `json:"index"`
}

func (r StateRef) String() string {
	return fmt.Sprintf("%s(%d)", r.TxID, r.Index)
}

// Record is a membership state together with the reference to the transaction output
// that produced it.
type Record struct {
	State    *State   `json:"state"`
	Ref      StateRef `json:"ref"`
	Contract string   `json:"contract"`
}

func (r *Record) String() string {
	return fmt.Sprintf("%s@%s", r.State, r.Ref)
}

// Newer reports whether r carries a more recent version than o.
func (r *Record) Newer(o *Record) bool {
	return r.State.Modified.After(o.State.Modified)
}
