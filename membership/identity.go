/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package membership

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"

	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/pkg/errors"
)

// Identity is the serialized public verification key of a party.
type Identity []byte

func (id Identity) Equal(o Identity) bool {
	return bytes.Equal(id, o)
}

func (id Identity) IsNone() bool {
	return len(id) == 0
}

func (id Identity) String() string {
	return logging.Base64(id).String()
}

// Party is a well-known participant of the network, identified by its distinguished name
// and its public key.
type Party struct {
	Name     string   `json:"name"`
	Identity Identity `json:"identity"`
}

func (p Party) Equal(o Party) bool {
	return p.Name == o.Name && p.Identity.Equal(o.Identity)
}

func (p Party) IsZero() bool {
	return len(p.Name) == 0 && p.Identity.IsNone()
}

func (p Party) String() string {
	return p.Name
}

// ContainsParty reports whether party is in parties.
func ContainsParty(parties []Party, party Party) bool {
	for _, p := range parties {
		if p.Equal(party) {
			return true
		}
	}
	return false
}

// SigningIdentity is a party together with its private key.
type SigningIdentity struct {
	Party
	key ed25519.PrivateKey
}

// NewSigningIdentity generates a fresh key pair for the given name.
func NewSigningIdentity(name string) (*SigningIdentity, error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrapf(err, "failed generating key for [%s]", name)
	}
	return &SigningIdentity{Party: Party{Name: name, Identity: Identity(pk)}, key: sk}, nil
}

// Sign signs the passed message.
func (s *SigningIdentity) Sign(msg []byte) []byte {
	return ed25519.Sign(s.key, msg)
}

// VerifySignature checks that sig is a signature of msg by id.
func VerifySignature(id Identity, msg, sig []byte) error {
	if len(id) != ed25519.PublicKeySize {
		return errors.Errorf("invalid identity length [%d]", len(id))
	}
	if !ed25519.Verify(ed25519.PublicKey(id), msg, sig) {
		return errors.Errorf("invalid signature by [%s]", id)
	}
	return nil
}
