// Package config loads the TOML file that configures the wiremsg command.
//
// Every key is optional. Keys present in the file override the defaults
// returned by Default; absent keys leave them alone, so a file may set a
// single limit without restating the rest of the profile.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/blockberries/wiremsg/internal/logging"
	"github.com/blockberries/wiremsg/pkg/wiremsg"
)

// FileName is the configuration file looked up in the working directory
// when no path is given.
const FileName = "wiremsg.toml"

// Config is the resolved command configuration.
type Config struct {
	// Protos are .proto files loaded into the catalog.
	Protos []string
	// SearchPaths resolve imports between .proto files.
	SearchPaths []string
	// DescriptorSets are serialized FileDescriptorSet files.
	DescriptorSets []string

	// Profile names the preset the decode options start from.
	Profile string
	Options wiremsg.Options

	// CorpusDir holds the golden sample store.
	CorpusDir string

	Log logging.Config
}

type fileConfig struct {
	Schema struct {
		Protos         []string `toml:"protos"`
		SearchPaths    []string `toml:"search_paths"`
		DescriptorSets []string `toml:"descriptor_sets"`
	} `toml:"schema"`

	Codec struct {
		Profile        string `toml:"profile"`
		StrictWireType bool   `toml:"strict_wire_type"`
		ValidateUTF8   bool   `toml:"validate_utf8"`
		Deterministic  bool   `toml:"deterministic"`
		PackRepeated   bool   `toml:"pack_repeated"`
		KeepUnknown    bool   `toml:"keep_unknown"`
	} `toml:"codec"`

	Limits struct {
		MaxMessageSize  int64 `toml:"max_message_size"`
		MaxDepth        int   `toml:"max_depth"`
		MaxStringLength int   `toml:"max_string_length"`
		MaxBytesLength  int   `toml:"max_bytes_length"`
		MaxRepeated     int   `toml:"max_repeated"`
		MaxMapSize      int   `toml:"max_map_size"`
	} `toml:"limits"`

	Corpus struct {
		Dir string `toml:"dir"`
	} `toml:"corpus"`

	Log struct {
		Level     string `toml:"level"`
		JSON      bool   `toml:"json"`
		NoColor   bool   `toml:"no_color"`
		Timestamp bool   `toml:"timestamp"`
	} `toml:"log"`
}

// Profiles maps profile names to option presets.
var Profiles = map[string]wiremsg.Options{
	"default": wiremsg.DefaultOptions,
	"secure":  wiremsg.SecureOptions,
	"strict":  wiremsg.StrictOptions,
	"fast":    wiremsg.FastOptions,
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Profile:   "default",
		Options:   wiremsg.DefaultOptions,
		CorpusDir: ".wiremsg/corpus",
		Log:       logging.DefaultConfig(logging.ProfileRuntime),
	}
}

// Load reads path over the defaults. An empty path tries FileName in the
// working directory and falls back to Default when it does not exist.
func Load(path string) (Config, error) {
	if path == "" {
		if _, err := os.Stat(FileName); errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		path = FileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults.
func Parse(text string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	if meta.IsDefined("schema", "protos") {
		cfg.Protos = normalizePaths(raw.Schema.Protos)
	}
	if meta.IsDefined("schema", "search_paths") {
		cfg.SearchPaths = normalizePaths(raw.Schema.SearchPaths)
	}
	if meta.IsDefined("schema", "descriptor_sets") {
		cfg.DescriptorSets = normalizePaths(raw.Schema.DescriptorSets)
	}

	if meta.IsDefined("codec", "profile") {
		name := strings.ToLower(strings.TrimSpace(raw.Codec.Profile))
		preset, ok := Profiles[name]
		if !ok {
			return Config{}, fmt.Errorf("unknown codec profile %q", raw.Codec.Profile)
		}
		cfg.Profile = name
		cfg.Options = preset
	}
	opts := &cfg.Options
	if meta.IsDefined("codec", "strict_wire_type") {
		opts.StrictWireType = raw.Codec.StrictWireType
	}
	if meta.IsDefined("codec", "validate_utf8") {
		opts.ValidateUTF8 = raw.Codec.ValidateUTF8
	}
	if meta.IsDefined("codec", "deterministic") {
		opts.Deterministic = raw.Codec.Deterministic
	}
	if meta.IsDefined("codec", "pack_repeated") {
		opts.PackRepeated = raw.Codec.PackRepeated
	}
	if meta.IsDefined("codec", "keep_unknown") {
		opts.KeepUnknown = raw.Codec.KeepUnknown
	}

	lim := &opts.Limits
	if meta.IsDefined("limits", "max_message_size") {
		lim.MaxMessageSize = raw.Limits.MaxMessageSize
	}
	if meta.IsDefined("limits", "max_depth") {
		lim.MaxDepth = raw.Limits.MaxDepth
	}
	if meta.IsDefined("limits", "max_string_length") {
		lim.MaxStringLength = raw.Limits.MaxStringLength
	}
	if meta.IsDefined("limits", "max_bytes_length") {
		lim.MaxBytesLength = raw.Limits.MaxBytesLength
	}
	if meta.IsDefined("limits", "max_repeated") {
		lim.MaxRepeated = raw.Limits.MaxRepeated
	}
	if meta.IsDefined("limits", "max_map_size") {
		lim.MaxMapSize = raw.Limits.MaxMapSize
	}

	if meta.IsDefined("corpus", "dir") {
		cfg.CorpusDir = strings.TrimSpace(raw.Corpus.Dir)
	}

	if meta.IsDefined("log", "level") {
		lvl, ok := logging.ParseLevel(raw.Log.Level)
		if !ok {
			return Config{}, fmt.Errorf("unknown log level %q", raw.Log.Level)
		}
		cfg.Log.Level = lvl
	}
	if meta.IsDefined("log", "json") {
		cfg.Log.JSON = raw.Log.JSON
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Log.Timestamp = raw.Log.Timestamp
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects negative limits and an empty corpus directory.
func Validate(cfg Config) error {
	lim := cfg.Options.Limits
	for name, v := range map[string]int64{
		"max_message_size":  lim.MaxMessageSize,
		"max_depth":         int64(lim.MaxDepth),
		"max_string_length": int64(lim.MaxStringLength),
		"max_bytes_length":  int64(lim.MaxBytesLength),
		"max_repeated":      int64(lim.MaxRepeated),
		"max_map_size":      int64(lim.MaxMapSize),
	} {
		if v < 0 {
			return fmt.Errorf("limits.%s must not be negative", name)
		}
	}
	if cfg.CorpusDir == "" {
		return fmt.Errorf("corpus.dir must not be empty")
	}
	return nil
}

func normalizePaths(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
