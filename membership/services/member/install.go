/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package member

import (
	"github.com/hyperledger-labs/fabric-bnms/membership/services/protocol"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
)

// Install registers the member responders advertising the passed protocol version.
func Install(registry view.Registry, member *Member, version int) error {
	responders := map[string]view.Factory{
		protocol.ActivateMembership: func() view.View { return NewActivateMembershipResponderView() },
		protocol.SuspendMembership:  func() view.View { return NewFinalityResponderView(view.AllVisible) },
		protocol.NotifyMember:       func() view.View { return NewNotifyMemberResponderView(member) },
	}
	for name, factory := range responders {
		if err := registry.RegisterResponder(view.Protocol{Name: name, Version: version}, factory); err != nil {
			return errors.WithMessagef(err, "failed installing responder for [%s]", name)
		}
	}
	return nil
}
