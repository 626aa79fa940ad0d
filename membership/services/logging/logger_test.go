/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerName(t *testing.T) {
	assert.Equal(t, "db.sql", loggerName("db", "", "sql"))
	assert.Equal(t, "", loggerName("", ""))
	assert.Equal(t, "bno", loggerName("bno"))
}

func TestLevels(t *testing.T) {
	l := MustGetLogger("test")
	SetLevel("debug")
	assert.True(t, l.IsEnabledFor(zapcore.DebugLevel))
	SetLevel("warn")
	assert.False(t, l.IsEnabledFor(zapcore.InfoLevel))
	assert.True(t, l.IsEnabledFor(zapcore.ErrorLevel))
	SetLevel("not-a-level")
	assert.False(t, l.IsEnabledFor(zapcore.InfoLevel))
	SetLevel("info")
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "O=Bank", Printable("O=Bank").String())
	assert.Equal(t, "aGk=", Base64([]byte("hi")).String())
	assert.Equal(t, "01234567890123456789~", Prefix("0123456789012345678901234").String())
	assert.Equal(t, "[a, b]", Keys(map[string]int{"b": 1, "a": 2}).String())
}

func TestInitAppliesToExistingLoggers(t *testing.T) {
	var buf bytes.Buffer
	sink = &buf
	defer func() {
		sink = stderr{}
		Init(Config{})
	}()

	l := MustGetLogger("cache")
	Init(Config{Format: "json", Level: "info"})
	l.Infof("reset [%d] entries", 3)
	l.Named("sub").Debugf("not printed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry), buf.String())
	assert.Equal(t, "reset [3] entries", entry["msg"])
	assert.Equal(t, "bnms.cache", entry["logger"])
	assert.Equal(t, "info", entry["level"])

	buf.Reset()
	Init(Config{})
	l.Infof("console again")
	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), "console again")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
