/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bno

import (
	"github.com/hyperledger-labs/fabric-bnms/membership/services/protocol"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
)

// GetMembershipsResponderView sends the memberships of the business network to an active member.
type GetMembershipsResponderView struct {
	operator *Operator
}

func NewGetMembershipsResponderView(operator *Operator) *GetMembershipsResponderView {
	return &GetMembershipsResponderView{operator: operator}
}

func (g *GetMembershipsResponderView) Call(context view.Context) (res interface{}, err error) {
	defer func() { g.operator.Metrics.observeFlow("get_memberships", err) }()
	session := view.FromContext(context)
	counterparty := session.Info().Counterparty
	ctx := context.Context()

	request := &protocol.MembershipListRequest{}
	if err := session.Receive(request); err != nil {
		return nil, errors.WithMessagef(err, "failed receiving membership list request from [%s]", counterparty)
	}
	bn, err := g.operator.BusinessNetwork(context, request.BusinessNetworkID)
	if err != nil {
		return nil, err
	}
	if _, err := g.operator.VerifyAndGetMembership(ctx, counterparty, bn); err != nil {
		return nil, err
	}

	logger.Infof("sending membership list of [%s] to [%s]", bn, counterparty)
	records, err := g.operator.Index.GetAllMemberships(ctx, bn)
	if err != nil {
		return nil, err
	}
	response := &protocol.MembershipListResponse{Records: records}
	if err := session.Send(response); err != nil {
		return nil, errors.WithMessagef(err, "failed sending membership list to [%s]", counterparty)
	}
	return response, nil
}
