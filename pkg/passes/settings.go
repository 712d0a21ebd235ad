// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"encoding/json"
	"maps"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

var registeredDefaults = make(Config)

// RegisterConfig declares a configuration key used by some pass, along with its default value.
// The type of the default value is the type used when parsing settings, see ParseConfig.
//
// It panics if the key was already registered with a value of a different type.
func RegisterConfig(key string, defaultValue any) {
	if previous, found := registeredDefaults[key]; found {
		if reflect.TypeOf(previous) != reflect.TypeOf(defaultValue) {
			exceptions.Panicf("pass configuration %q registered with types %T and %T", key, previous, defaultValue)
		}
	}
	registeredDefaults[key] = defaultValue
}

// DefaultConfig returns a new Config with the default values of all registered configuration keys.
func DefaultConfig() Config {
	return maps.Clone(registeredDefaults)
}

// ParseConfig parses settings into a copy of base (which may be nil), and returns it.
//
// The settings are a list separated by ";": e.g.: "use_cutlass=true;other=1". Each key must have been
// declared with RegisterConfig, and the value is parsed to the type of its default.
// For integer types, "_" is removed, so "1_000" is accepted.
//
// A setting "file:<path>" reads settings from the file, one or more per line. Empty lines and lines
// starting with "#" are ignored.
func ParseConfig(base Config, settings string) (Config, error) {
	cfg := maps.Clone(base)
	if cfg == nil {
		cfg = make(Config)
	}
	for _, setting := range strings.Split(settings, ";") {
		if err := parseSetting(cfg, strings.TrimSpace(setting)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func parseSetting(cfg Config, setting string) error {
	if setting == "" {
		return nil
	}
	if filePath, isFile := strings.CutPrefix(setting, "file:"); isFile {
		contents, err := os.ReadFile(filePath)
		if err != nil {
			return errors.Wrapf(err, "failed to read settings from file %q", filePath)
		}
		for _, line := range strings.Split(string(contents), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			for _, lineSetting := range strings.Split(line, ";") {
				if err := parseSetting(cfg, strings.TrimSpace(lineSetting)); err != nil {
					return errors.WithMessagef(err, "in file %q", filePath)
				}
			}
		}
		return nil
	}

	key, valueStr, found := strings.Cut(setting, "=")
	if !found {
		return errors.Errorf("can't parse setting %q: it requires the format \"<key>=<value>\"", setting)
	}
	key = strings.TrimSpace(key)
	defaultValue, found := registeredDefaults[key]
	if !found {
		return errors.Errorf("unknown pass configuration %q, known ones are %q", key, DefaultConfig().keys())
	}
	value, err := parseValue(defaultValue, strings.TrimSpace(valueStr))
	if err != nil {
		return errors.WithMessagef(err, "setting %q", setting)
	}
	cfg[key] = value
	return nil
}

// parseValue parses valueStr to the type of defaultValue.
func parseValue(defaultValue any, valueStr string) (any, error) {
	var err error
	switch v := defaultValue.(type) {
	case bool:
		err = json.Unmarshal([]byte(valueStr), &v)
		return v, errors.Wrapf(err, "failed to parse %q as bool", valueStr)
	case int:
		err = json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), &v)
		return v, errors.Wrapf(err, "failed to parse %q as int", valueStr)
	case float64:
		err = json.Unmarshal([]byte(valueStr), &v)
		return v, errors.Wrapf(err, "failed to parse %q as float64", valueStr)
	case string:
		return valueStr, nil
	}
	return nil, errors.Errorf("configuration of type %T can't be parsed from a setting", defaultValue)
}

func (cfg Config) keys() []string {
	return slices.Sorted(maps.Keys(cfg))
}
