/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of the environment variables overriding configuration keys.
	EnvPrefix = "BNMS"
	// FileName is the name of the configuration file looked up in a configuration directory.
	FileName = "bnms"
)

// ViperProvider reads configuration keys from a YAML file, environment variables
// override single keys (bnms.autoActivate is overridden by BNMS_AUTOACTIVATE).
type ViperProvider struct {
	mutex sync.RWMutex
	v     *viper.Viper
}

// NewProvider loads the configuration at path, either a YAML file or a directory
// containing bnms.yaml.
func NewProvider(path string) (*ViperProvider, error) {
	v, err := load(path)
	if err != nil {
		return nil, err
	}
	return &ViperProvider{v: v}, nil
}

// NewProviderFromBytes loads a YAML configuration held in memory.
func NewProviderFromBytes(raw []byte) (*ViperProvider, error) {
	v := newViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, errors.Wrap(err, "failed reading configuration")
	}
	return &ViperProvider{v: v}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func load(path string) (*viper.Viper, error) {
	v := newViper()
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed accessing configuration [%s]", path)
	}
	if info.IsDir() {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(path)
	} else {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed reading configuration [%s]", filepath.Clean(path))
	}
	return v, nil
}

// Reload replaces the whole configuration with the one at path.
func (p *ViperProvider) Reload(path string) error {
	v, err := load(path)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	p.v = v
	p.mutex.Unlock()
	return nil
}

// MergeConfig merges a YAML document into the current configuration.
func (p *ViperProvider) MergeConfig(raw []byte) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.v.MergeConfig(bytes.NewReader(raw))
}

// UnmarshalKey decodes the subtree at key into rawVal. Scalars are converted weakly,
// so "true" decodes into a bool and "10" into an int.
func (p *ViperProvider) UnmarshalKey(key string, rawVal interface{}) error {
	p.mutex.RLock()
	value := p.v.Get(key)
	p.mutex.RUnlock()
	if value == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           rawVal,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrap(err, "failed creating decoder")
	}
	if err := decoder.Decode(value); err != nil {
		return errors.Wrapf(err, "failed decoding configuration key [%s]", key)
	}
	return nil
}

func (p *ViperProvider) GetString(key string) string {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.v.GetString(key)
}

func (p *ViperProvider) GetBool(key string) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.v.GetBool(key)
}

func (p *ViperProvider) GetInt(key string) int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.v.GetInt(key)
}

func (p *ViperProvider) IsSet(key string) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.v.IsSet(key)
}
