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

type tierMetadata struct {
	Tier int `json:"tier"`
}

type tradeMetadata struct {
	LEI  string `json:"lei"`
	Tier int    `json:"tier"`
}

func TestMetadataEquality(t *testing.T) {
	a := MustMetadata(SimpleMetadata{Role: "Bank", DisplayedName: "A"})
	b := Metadata{Type: a.Type, Value: json.RawMessage(`{ "displayedName": "A", "role": "Bank" }`)}
	assert.True(t, a.Equal(b), "field order and whitespace do not matter")
	assert.True(t, a.SameType(b))

	c := MustMetadata(SimpleMetadata{Role: "Bank", DisplayedName: "B"})
	assert.False(t, a.Equal(c))
	assert.True(t, a.SameType(c))

	d := MustMetadata(RolesMetadata{Roles: []Role{OperatorRole}})
	assert.False(t, a.SameType(d))
	assert.False(t, a.Equal(d))

	// same value, different type
	e := Metadata{Type: "other", Value: a.Value}
	assert.False(t, a.Equal(e))
}

func TestMetadataTypeNames(t *testing.T) {
	assert.Equal(t, "bnms.SimpleMetadata", MustMetadata(SimpleMetadata{}).Type)
	assert.Equal(t, "bnms.SimpleMetadata", MustMetadata(&SimpleMetadata{}).Type)
	assert.Equal(t, "github.com/hyperledger-labs/fabric-bnms/membership.tierMetadata", MustMetadata(tierMetadata{}).Type)
	assert.Equal(t, "map[string]string", MustMetadata(map[string]string{"a": "b"}).Type)

	RegisterMetadataType[tradeMetadata]("trade.Metadata")
	md := MustMetadata(tradeMetadata{LEI: "5493001KJTIIGC8Y1R12", Tier: 1})
	assert.Equal(t, "trade.Metadata", md.Type)

	decoded, err := DecodeMetadata[tradeMetadata](md)
	require.NoError(t, err)
	assert.Equal(t, tradeMetadata{LEI: "5493001KJTIIGC8Y1R12", Tier: 1}, decoded)

	_, err = NewMetadata(nil)
	assert.Error(t, err)

	again, err := NewMetadata(md)
	require.NoError(t, err)
	assert.Equal(t, md, again)
}

func TestRolesMetadata(t *testing.T) {
	md := RolesMetadata{Roles: []Role{OperatorRole, {Name: "Insurer"}}}
	assert.True(t, md.HasRole("BNO"))
	assert.True(t, md.HasRole("Insurer"))
	assert.False(t, md.HasRole("Bank"))
}
