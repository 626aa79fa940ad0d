/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package membership

import (
	"encoding/json"
	"fmt"
)

// ErrorKind classifies the failures a membership operation can report to its caller.
type ErrorKind string

const (
	KindNotAMember                    ErrorKind = "not_a_member"
	KindMembershipNotActive           ErrorKind = "membership_not_active"
	KindNotOperator                   ErrorKind = "not_operator"
	KindOperatorNotWhitelisted        ErrorKind = "operator_not_whitelisted"
	KindBusinessNetworkNotWhitelisted ErrorKind = "business_network_not_whitelisted"
	KindMembershipNotFound            ErrorKind = "membership_not_found"
	KindBusinessNetworkNotFound       ErrorKind = "business_network_not_found"
	KindOperatorMismatch              ErrorKind = "operator_mismatch"
	KindOperatorsDiffer               ErrorKind = "operators_differ"
	KindBusinessNetworksDiffer        ErrorKind = "business_networks_differ"
	KindNonEmptyBusinessNetwork       ErrorKind = "non_empty_business_network"
	KindNoOperatorRegistered          ErrorKind = "no_operator_registered"
	KindRequestAlreadyExists          ErrorKind = "request_already_exists"
	KindMembershipAlreadyExists       ErrorKind = "membership_already_exists"
	KindNotaryNotFound                ErrorKind = "notary_not_found"
	KindPartyNotFound                 ErrorKind = "party_not_found"
	KindTransactionRejected           ErrorKind = "transaction_rejected"
	KindInvalidTransaction            ErrorKind = "invalid_transaction"
	KindUnknownCommand                ErrorKind = "unknown_command"
	KindRemote                        ErrorKind = "remote"
)

// Error is a typed, caller-visible failure. Two errors match under errors.Is when
// they have the same kind, so the sentinels below can be used as targets.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	if len(e.Message) == 0 {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Marshal encodes the error for transmission over a session.
func (e *Error) Marshal() []byte {
	raw, err := json.Marshal(e)
	if err != nil {
		return []byte(e.Error())
	}
	return raw
}

// UnmarshalError decodes an error received from a counterparty.
// Payloads that are not encoded errors become a KindRemote error carrying the raw text.
func UnmarshalError(raw []byte) *Error {
	e := &Error{}
	if err := json.Unmarshal(raw, e); err != nil || len(e.Kind) == 0 {
		return &Error{Kind: KindRemote, Message: string(raw)}
	}
	return e
}

var (
	ErrNotAMember                    = &Error{Kind: KindNotAMember}
	ErrMembershipNotActive           = &Error{Kind: KindMembershipNotActive}
	ErrNotOperator                   = &Error{Kind: KindNotOperator}
	ErrOperatorNotWhitelisted        = &Error{Kind: KindOperatorNotWhitelisted}
	ErrBusinessNetworkNotWhitelisted = &Error{Kind: KindBusinessNetworkNotWhitelisted}
	ErrMembershipNotFound            = &Error{Kind: KindMembershipNotFound}
	ErrBusinessNetworkNotFound       = &Error{Kind: KindBusinessNetworkNotFound}
	ErrOperatorMismatch              = &Error{Kind: KindOperatorMismatch}
	ErrOperatorsDiffer               = &Error{Kind: KindOperatorsDiffer}
	ErrBusinessNetworksDiffer        = &Error{Kind: KindBusinessNetworksDiffer}
	ErrNonEmptyBusinessNetwork       = &Error{Kind: KindNonEmptyBusinessNetwork}
	ErrNoOperatorRegistered          = &Error{Kind: KindNoOperatorRegistered}
	ErrRequestAlreadyExists          = &Error{Kind: KindRequestAlreadyExists}
	ErrMembershipAlreadyExists       = &Error{Kind: KindMembershipAlreadyExists}
	ErrNotaryNotFound                = &Error{Kind: KindNotaryNotFound}
	ErrPartyNotFound                 = &Error{Kind: KindPartyNotFound}
	ErrTransactionRejected           = &Error{Kind: KindTransactionRejected}
	ErrInvalidTransaction            = &Error{Kind: KindInvalidTransaction}
	ErrUnknownCommand                = &Error{Kind: KindUnknownCommand}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewNotAMemberError(counterparty Party) *Error {
	return newError(KindNotAMember, "counterparty [%s] is not a member of this business network", counterparty)
}

func NewMembershipNotActiveError(counterparty Party) *Error {
	return newError(KindMembershipNotActive, "membership of counterparty [%s] in this business network is not active", counterparty)
}

func NewNotOperatorError(state *State) *Error {
	return newError(KindNotOperator, "this node is not the operator of business network [%s] for the membership of [%s]", state.BusinessNetwork.ID, state.Member)
}

func NewOperatorNotWhitelistedError(operator Party) *Error {
	return newError(KindOperatorNotWhitelisted, "operator [%s] is not whitelisted as a business network operator", operator)
}

func NewBusinessNetworkNotWhitelistedError(id string) *Error {
	return newError(KindBusinessNetworkNotWhitelisted, "business network [%s] is not whitelisted", id)
}

func NewMembershipNotFoundError(party Party) *Error {
	return newError(KindMembershipNotFound, "membership for party [%s] not found", party)
}

func NewBusinessNetworkNotFoundError(id string, operator Party) *Error {
	if len(id) == 0 {
		return newError(KindBusinessNetworkNotFound, "business network does not exist for operator [%s]", operator)
	}
	return newError(KindBusinessNetworkNotFound, "business network does not exist for [%s]", id)
}

func NewAmbiguousBusinessNetworkError(operator Party, count int) *Error {
	return newError(KindBusinessNetworkNotFound, "operator [%s] runs [%d] business networks, an id is required", operator, count)
}

func NewOperatorMismatchError(id string, operator Party) *Error {
	return newError(KindOperatorMismatch, "[%s] is not the operator of business network [%s]", operator, id)
}

func NewOperatorsDifferError(a, b Party) *Error {
	return newError(KindOperatorsDiffer, "operator [%s] is not the same as [%s]", a, b)
}

func NewBusinessNetworksDifferError(a, b string) *Error {
	return newError(KindBusinessNetworksDiffer, "business network [%s] is not the same as [%s]", a, b)
}

func NewNonEmptyBusinessNetworkError(id string) *Error {
	return newError(KindNonEmptyBusinessNetwork, "business network [%s] is not empty", id)
}

func NewNoOperatorRegisteredError(bn BusinessNetwork) *Error {
	return newError(KindNoOperatorRegistered, "business network [%s] does not have a registered operator", bn)
}

func NewRequestAlreadyExistsError(party Party) *Error {
	return newError(KindRequestAlreadyExists, "membership request for [%s] already exists", party)
}

func NewMembershipAlreadyExistsError(party Party, bn BusinessNetwork) *Error {
	return newError(KindMembershipAlreadyExists, "membership of [%s] in business network [%s] already exists", party, bn)
}

func NewNotaryNotFoundError(name string) *Error {
	return newError(KindNotaryNotFound, "notary [%s] has not been found on the network", name)
}

func NewPartyNotFoundError(name string) *Error {
	return newError(KindPartyNotFound, "party [%s] has not been found on the network", name)
}

func NewTransactionRejectedError(txID string, reason error) *Error {
	return newError(KindTransactionRejected, "transaction [%s] rejected: %s", txID, reason)
}

func NewInvalidTransactionError(format string, args ...interface{}) *Error {
	return newError(KindInvalidTransaction, format, args...)
}
