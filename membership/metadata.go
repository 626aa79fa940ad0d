/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package membership

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// Metadata is the user-defined payload attached to a membership.
// Its structural type travels with the value so that two payloads can be compared
// for type identity without knowing the concrete Go types.
type Metadata struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

var (
	metadataTypesLock sync.RWMutex
	metadataTypes     = map[reflect.Type]string{}
)

// RegisterMetadataType binds a stable name to the Go type T.
// Unregistered types are tagged with their package-qualified Go type name.
func RegisterMetadataType[T any](name string) {
	metadataTypesLock.Lock()
	defer metadataTypesLock.Unlock()
	metadataTypes[reflect.TypeOf((*T)(nil)).Elem()] = name
}

func metadataTypeOf(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	metadataTypesLock.RLock()
	name, ok := metadataTypes[t]
	metadataTypesLock.RUnlock()
	if ok {
		return name
	}
	if len(t.Name()) == 0 {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// NewMetadata encodes v.
func NewMetadata(v any) (Metadata, error) {
	if v == nil {
		return Metadata{}, errors.New("metadata cannot be nil")
	}
	if md, ok := v.(Metadata); ok {
		return md, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Metadata{}, errors.Wrapf(err, "failed encoding metadata of type [%T]", v)
	}
	return Metadata{Type: metadataTypeOf(v), Value: raw}, nil
}

// MustMetadata is like NewMetadata but panics on failure.
func MustMetadata(v any) Metadata {
	md, err := NewMetadata(v)
	if err != nil {
		panic(err)
	}
	return md
}

// DecodeMetadata decodes md into a value of type T.
func DecodeMetadata[T any](md Metadata) (T, error) {
	var v T
	if err := md.Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}

func (m Metadata) Decode(v any) error {
	if err := json.Unmarshal(m.Value, v); err != nil {
		return errors.Wrapf(err, "failed decoding metadata of type [%s]", m.Type)
	}
	return nil
}

func (m Metadata) IsZero() bool {
	return len(m.Type) == 0 && len(m.Value) == 0
}

// SameType reports whether m and o carry the same structural type.
func (m Metadata) SameType(o Metadata) bool {
	return m.Type == o.Type
}

// Equal reports whether m and o have the same type and the same value, regardless of
// field ordering or whitespace in the encoded form.
func (m Metadata) Equal(o Metadata) bool {
	if !m.SameType(o) {
		return false
	}
	a, err := canonical(m.Value)
	if err != nil {
		return bytes.Equal(m.Value, o.Value)
	}
	b, err := canonical(o.Value)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

func canonical(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// SimpleMetadata is a basic metadata carrying a role and a name to display.
type SimpleMetadata struct {
	Role          string `json:"role"`
	DisplayedName string `json:"displayedName"`
}

// Role is a named responsibility of a member within a business network.
type Role struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// OperatorRole is the role every business network operator holds.
var OperatorRole = Role{Name: "BNO", Description: "Business Network Operator"}

// RolesMetadata is a metadata made of a set of roles. Business networks extend it
// with their own roles.
type RolesMetadata struct {
	Roles []Role `json:"roles"`
}

func (m RolesMetadata) HasRole(name string) bool {
	for _, r := range m.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

func init() {
	RegisterMetadataType[SimpleMetadata]("bnms.SimpleMetadata")
	RegisterMetadataType[RolesMetadata]("bnms.RolesMetadata")
}
