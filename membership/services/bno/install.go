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

// Install registers the operator responders advertising the passed protocol version.
func Install(registry view.Registry, operator *Operator, version int) error {
	responders := map[string]view.Factory{
		protocol.RequestMembership: func() view.View { return NewRequestMembershipResponderView(operator) },
		protocol.AmendMetadata:     func() view.View { return NewAmendMetadataResponderView(operator) },
		protocol.GetMemberships:    func() view.View { return NewGetMembershipsResponderView(operator) },
	}
	for name, factory := range responders {
		if err := registry.RegisterResponder(view.Protocol{Name: name, Version: version}, factory); err != nil {
			return errors.WithMessagef(err, "failed installing responder for [%s]", name)
		}
	}
	return nil
}
