/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package demo

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func run(t *testing.T, args *Args) *Output {
	b := &bytes.Buffer{}
	require.NoError(t, Run(context.Background(), b, args))
	out := &Output{}
	require.NoError(t, yaml.Unmarshal(b.Bytes(), out))
	return out
}

func count(rows []Row, status string) int {
	n := 0
	for _, r := range rows {
		if r.Status == status {
			n++
		}
	}
	return n
}

func TestRun(t *testing.T) {
	out := run(t, &Args{Members: 2})
	assert.NotEmpty(t, out.BusinessNetwork)
	assert.Len(t, out.Operator, 3)
	assert.Equal(t, 3, count(out.Operator, "ACTIVE"))
	assert.Len(t, out.Member, 3)
}

func TestRunWithAutoActivationAndSuspension(t *testing.T) {
	out := run(t, &Args{Members: 3, AutoActivate: true, Suspended: 1})
	assert.Len(t, out.Operator, 4)
	assert.Equal(t, 3, count(out.Operator, "ACTIVE"))
	assert.Equal(t, 1, count(out.Operator, "SUSPENDED"))
	assert.Len(t, out.Member, 3)
	assert.Equal(t, 3, count(out.Member, "ACTIVE"))
}

func TestRunInvalidArgs(t *testing.T) {
	err := Run(context.Background(), &bytes.Buffer{}, &Args{Members: 1, Suspended: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments")
}
