// Package conf loads server configuration from a TOML file plus MS_-prefixed
// environment overrides, via viper (the teacher's configuration library).
package conf

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TranscodeProfile templates an external transcoder's argv (spec §4.E).
type TranscodeProfile struct {
	Name            string
	Command         string
	Arguments       string // "%in" / "%out" substituted at spawn time
	MimeType        string
	DLNAProfileName string
	DLNAFlags       string
	Environment     map[string]string
	AcceptURL       bool // stateless transcoder: seek respawns with adjusted args
	FirstResource   bool // hoist to res position 0 when it matches
	BufferSize      int
	InitialFillSize int
	ChunkSize       int
}

// ClientProfileConfig is the config-file shape for model.ClientProfile.
type ClientProfileConfig struct {
	Name             string
	Group            string
	MatchType        string
	Match            string
	Flags            []string
	Headers          map[string]string
	MimeMappings     map[string]string
	DlnaMappings     map[string]string
	CaptionInfoCount int
	StringLimit      int
	MultiValue       bool
	FullFilter       bool
}

// AutoscanConfig is the config-file shape for model.AutoscanDirectory.
type AutoscanConfig struct {
	Location       string
	ScanMode       string
	Recursive      bool
	Hidden         bool
	FollowSymlinks bool
	IntervalSecs   int
}

// Config holds the full server configuration (spec §6: CLI at minimum sets
// this, config file path, interface/IP/port, log verbosity).
type Config struct {
	BindAddress string
	Port        int
	ServerName  string
	MediaRoot   string
	WebRoot     string
	CORSHosts   []string

	LogLevel string

	SessionTimeout        time.Duration
	ClientObservationIdle time.Duration

	Clients           []ClientProfileConfig
	TranscodeProfiles []TranscodeProfile
	Autoscan          []AutoscanConfig

	RuntimeDir string // scratch dir for transcode FIFOs
}

// Default returns the built-in defaults, overridden by file/env in Load.
func Default() *Config {
	return &Config{
		BindAddress:           "0.0.0.0",
		Port:                  8200,
		ServerName:            "Go MediaServer",
		MediaRoot:             "/srv/media",
		WebRoot:               "/content/interface",
		LogLevel:              "info",
		SessionTimeout:        60 * time.Minute,
		ClientObservationIdle: time.Hour,
		RuntimeDir:            "/tmp/mediaserver",
	}
}

// Load reads path (if non-empty) via viper, layering MS_-prefixed env vars
// over it, and unmarshals onto the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("MS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
