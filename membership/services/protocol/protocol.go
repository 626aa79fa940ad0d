/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package protocol

import (
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
)

const (
	// Version1 finalises membership transactions with the operator alone.
	Version1 = 1
	// Version2 distributes the finalised transactions to the counterparties.
	Version2 = 2
	// CurrentVersion is the version served and requested by default.
	CurrentVersion = Version2
)

const (
	RequestMembership  = "bnms.RequestMembership"
	AmendMetadata      = "bnms.AmendMembershipMetadata"
	GetMemberships     = "bnms.GetMemberships"
	ActivateMembership = "bnms.ActivateMembership"
	SuspendMembership  = "bnms.SuspendMembership"
	NotifyMember       = "bnms.NotifyMember"
)

// New returns the protocol with the passed name at the current version.
func New(name string) view.Protocol {
	return view.Protocol{Name: name, Version: CurrentVersion}
}

// IsLegacy reports whether the counterparty of the session only supports single party finalisation.
func IsLegacy(info view.SessionInfo) bool {
	return info.CounterpartyVersion < Version2
}

// OnBoardingRequest asks the operator to issue a pending membership.
type OnBoardingRequest struct {
	BusinessNetworkID string `json:"businessNetworkId"`
	// BusinessNetwork is the business network as resolved by the member.
	BusinessNetwork membership.BusinessNetwork `json:"businessNetwork"`
	Metadata        membership.Metadata        `json:"metadata"`
}

// AmendMetadataRequest asks the operator to change the metadata of an active membership.
type AmendMetadataRequest struct {
	BusinessNetworkID string                     `json:"businessNetworkId"`
	BusinessNetwork   membership.BusinessNetwork `json:"businessNetwork"`
	Metadata          membership.Metadata        `json:"metadata"`
}

type MembershipListRequest struct {
	BusinessNetworkID string `json:"businessNetworkId"`
}

type MembershipListResponse struct {
	Records []*membership.Record `json:"records"`
}

// MembershipChangedNotification is pushed by the operator to the members when a membership changes.
type MembershipChangedNotification struct {
	Changed *membership.Record `json:"changed"`
}

// NotificationAck confirms that a notification has been processed.
type NotificationAck struct {
	TxID string `json:"txId"`
}
