/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package membership

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	alice, err := NewSigningIdentity("O=Alice")
	require.NoError(t, err)
	bob, err := NewSigningIdentity("O=Bob")
	require.NoError(t, err)

	assert.True(t, alice.Identity.Equal(Identity(append([]byte(nil), alice.Identity...))))
	assert.False(t, alice.Identity.Equal(bob.Identity))
	assert.True(t, Identity(nil).IsNone())
	assert.False(t, alice.Identity.IsNone())
	assert.Equal(t, "aGk=", Identity("hi").String())
	assert.True(t, Party{}.IsZero())
	assert.False(t, alice.Party.IsZero())

	raw, err := json.Marshal(alice.Party)
	require.NoError(t, err)
	var decoded Party
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.Equal(alice.Party))

	msg := []byte("membership")
	require.NoError(t, VerifySignature(alice.Identity, msg, alice.Sign(msg)))
	assert.ErrorContains(t, VerifySignature(bob.Identity, msg, alice.Sign(msg)), "invalid signature by ["+bob.Identity.String()+"]")
	assert.ErrorContains(t, VerifySignature(Identity("short"), msg, nil), "invalid identity length [5]")
}
