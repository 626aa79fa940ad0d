/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// Printable returns a stringer that replaces invalid UTF-8 sequences, useful for
// party names received from the wire.
func Printable(id string) fmt.Stringer {
	return printable(id)
}

type printable string

func (w printable) String() string {
	return strings.ToValidUTF8(string(w), "X")
}

// Prefix shortens long identifiers to their first 20 characters.
func Prefix(id string) fmt.Stringer {
	return prefix(id)
}

type prefix string

func (w prefix) String() string {
	s := string(w)
	if len(s) <= 20 {
		return strings.ToValidUTF8(s, "X")
	}
	return fmt.Sprintf("%s~", strings.ToValidUTF8(s[:20], "X"))
}

// Base64 lazily encodes raw bytes.
func Base64(b []byte) fmt.Stringer {
	return base64Stringer(b)
}

type base64Stringer []byte

func (b base64Stringer) String() string {
	return base64.StdEncoding.EncodeToString(b)
}

// Keys lazily prints the sorted keys of a map.
func Keys[K comparable, V any](m map[K]V) fmt.Stringer {
	return keys[K, V](m)
}

type keys[K comparable, V any] map[K]V

func (k keys[K, V]) String() string {
	s := make([]string, 0, len(k))
	for key := range k {
		s = append(s, fmt.Sprintf("%v", key))
	}
	sort.Strings(s)
	return "[" + strings.Join(s, ", ") + "]"
}
