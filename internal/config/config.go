// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/magiconair/properties"
	"github.com/spf13/viper"

	"github.com/mdhender/initscript"
)

// Viper keys. The db.* keys are the property names applications already use
// in their properties files.
const (
	KeyURL         = initscript.KeyURL
	KeyUsername    = initscript.KeyUsername
	KeyPassword    = initscript.KeyPassword
	KeyInitScript  = initscript.KeyInitScript
	KeyResourceDir = "resource_dir"
	KeyVerbose     = "verbose"
)

// EnvPrefix is prepended to environment variables, so db.init-script is read
// from INITSCRIPT_DB_INIT_SCRIPT.
const EnvPrefix = "INITSCRIPT"

// Config holds the runtime configuration of the initscript command.
type Config struct {
	DB          initscript.Config
	ResourceDir string
	Verbose     bool
}

// Load reads configuration from v, which merges flag values, env vars, the
// optional config file and defaults (set up by the cobra command in
// cmd/initscript).
func Load(v *viper.Viper) Config {
	return Config{
		DB:          initscript.ConfigFromLookup(v.GetString),
		ResourceDir: v.GetString(KeyResourceDir),
		Verbose:     v.GetBool(KeyVerbose),
	}
}

// New returns a viper instance reading INITSCRIPT_* environment variables,
// with defaults applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyResourceDir, ".")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges a config file into v. The format follows the extension:
// .properties, .yaml, .toml, .json, ...
func ReadFile(v *viper.Viper, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".properties", ".props", ".prop":
		return readProperties(v, path)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// readProperties merges a Java properties file into v. viper has no
// properties codec, so the file is decoded here and dotted keys are nested
// the way viper nests YAML keys.
func readProperties(v *viper.Viper, path string) error {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	p.DisableExpansion = true

	m := make(map[string]any)
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		parts := strings.Split(key, ".")
		node := m
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}

	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}
