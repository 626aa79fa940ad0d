/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestCheck(t *testing.T) {
	b := &bytes.Buffer{}
	require.NoError(t, Check(b, "./testdata/valid"))

	report := &Report{}
	require.NoError(t, yaml.Unmarshal(b.Bytes(), report))
	assert.Equal(t, "O=Notary,L=London,C=GB", report.Notary)
	assert.True(t, report.AutoActivate)
	require.Len(t, report.BusinessNetworks, 2)
	assert.Equal(t, "Trade Finance", report.BusinessNetworks[0].Name)
	assert.Equal(t, []string{"O=BNO,L=New York,C=US"}, report.Operators)
	assert.Equal(t, "sqlite", report.DB.Driver)
	assert.Equal(t, "bnms_", report.DB.TablePrefix)
	assert.Equal(t, int64(10000), report.CacheMaxCost)
}

func TestCheckFailures(t *testing.T) {
	err := Check(&bytes.Buffer{}, "./testdata/invalid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver [postgres] needs a data source")

	err = Check(&bytes.Buffer{}, "./testdata/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed accessing configuration")
}

func TestCmd(t *testing.T) {
	cmd := Cmd()
	b := &bytes.Buffer{}
	cmd.SetOut(b)
	cmd.SetArgs([]string{"check", "-p", "./testdata/valid"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, b.String(), "businessNetworks:")
}
