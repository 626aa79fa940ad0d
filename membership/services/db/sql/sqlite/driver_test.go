/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sqlite

import (
	"fmt"
	"path"
	"testing"

	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/dbtest"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	dbtest.StoreTest(t, func(name string) driver.Store {
		store, err := NewNamedDriver().Driver.Open(sqliteOpts(t.TempDir(), name))
		require.NoError(t, err)
		return store
	})
}

func TestOpenRequiresDataSource(t *testing.T) {
	_, err := Open(driver.Opts{}, false)
	assert.EqualError(t, err, "sqlite data source not set")
}

func TestInvalidTablePrefix(t *testing.T) {
	opts := sqliteOpts(t.TempDir(), "bad-prefix;")
	_, err := Open(opts, false)
	assert.EqualError(t, err, "invalid table prefix [bad-prefix;]")
}

func TestDataSource(t *testing.T) {
	assert.Equal(t, "file:test.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", DataSource("file:test.db", false))
	assert.Equal(t, "file:test.db?cache=shared&_pragma=busy_timeout(5000)", DataSource("file:test.db?cache=shared", true))
}

func TestIsDuplicate(t *testing.T) {
	assert.False(t, IsDuplicate(nil))
	assert.True(t, IsDuplicate(fmt.Errorf("UNIQUE constraint failed: pending_requests.member_name")))
	assert.False(t, IsDuplicate(fmt.Errorf("no such table")))
}

func sqliteOpts(tempDir string, name string) driver.Opts {
	return driver.Opts{
		DataSource:   fmt.Sprintf("file:%s", path.Join(tempDir, "db.sqlite")),
		TablePrefix:  name,
		MaxOpenConns: 10,
		CreateSchema: true,
	}
}
