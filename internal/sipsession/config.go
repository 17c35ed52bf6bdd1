package sipsession

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voicebridge/internal/playout"
)

const (
	defaultSIPBindPort = 5060
	defaultTransport   = "udp"
	defaultFrameMs     = 20
)

// Config is the fully validated, defaulted runtime configuration. It is the
// only thing the rest of the program consumes; yamlConfig exists solely to
// decode the on-disk file.
type Config struct {
	SIPBindPort   int
	SIPTransport  string
	SIPExternalIP string
	SIPAuthUser   string
	SIPAuthPass   string
	SIPAuthRealm  string

	EstablishTimeout time.Duration
	FrameDuration    time.Duration

	AIEndpointURL string
	AIAuthHeader  http.Header

	TrimPolicy          playout.TrimPolicy
	OverflowPolicy      playout.OverflowPolicy
	TypingSoundsEnabled bool

	MaxActiveCalls int64
}

type yamlConfig struct {
	SIP struct {
		BindPort     int    `yaml:"bind_port"`
		Transport    string `yaml:"transport"`
		ExternalIP   string `yaml:"external_ip"`
		AuthUser     string `yaml:"auth_user"`
		AuthPassword string `yaml:"auth_password"`
		AuthRealm    string `yaml:"auth_realm"`
	} `yaml:"sip"`
	AI struct {
		EndpointURL string `yaml:"endpoint_url"`
		AuthToken   string `yaml:"auth_token"`
	} `yaml:"ai"`
	Audio struct {
		FrameMs             int    `yaml:"frame_ms"`
		TrimPolicy          string `yaml:"trim_policy"`
		OverflowPolicy      string `yaml:"overflow_policy"`
		TypingSoundsEnabled bool   `yaml:"typing_sounds_enabled"`
	} `yaml:"audio"`
	Call struct {
		EstablishTimeout string `yaml:"establish_timeout"`
		MaxActiveCalls   int64  `yaml:"max_active_calls"`
	} `yaml:"call"`
}

// LoadConfig reads and validates the YAML config file at path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		SIPBindPort:      defaultSIPBindPort,
		SIPTransport:     defaultTransport,
		EstablishTimeout: 25 * time.Second,
		FrameDuration:    defaultFrameMs * time.Millisecond,
		TrimPolicy:       playout.TrimPolicyCapTrim,
		OverflowPolicy:   playout.OverflowDrainPartial,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yc.SIP.BindPort > 0 {
		cfg.SIPBindPort = yc.SIP.BindPort
	}
	if yc.SIP.Transport != "" {
		cfg.SIPTransport = strings.ToLower(yc.SIP.Transport)
	}
	if cfg.SIPTransport != "udp" && cfg.SIPTransport != "tcp" {
		return Config{}, fmt.Errorf("sip.transport must be 'udp' or 'tcp', got %q", cfg.SIPTransport)
	}
	cfg.SIPExternalIP = yc.SIP.ExternalIP

	cfg.SIPAuthUser = yc.SIP.AuthUser
	cfg.SIPAuthPass = yc.SIP.AuthPassword
	if (cfg.SIPAuthUser == "") != (cfg.SIPAuthPass == "") {
		return Config{}, errors.New("sip.auth_user and sip.auth_password must be set together")
	}
	cfg.SIPAuthRealm = yc.SIP.AuthRealm

	if yc.AI.EndpointURL == "" {
		return Config{}, errors.New("ai.endpoint_url is required")
	}
	cfg.AIEndpointURL = yc.AI.EndpointURL
	if yc.AI.AuthToken != "" {
		cfg.AIAuthHeader = http.Header{"Authorization": []string{"Bearer " + yc.AI.AuthToken}}
	}

	if yc.Audio.FrameMs > 0 {
		cfg.FrameDuration = time.Duration(yc.Audio.FrameMs) * time.Millisecond
	}
	switch strings.ToLower(yc.Audio.TrimPolicy) {
	case "", "cap_trim":
		cfg.TrimPolicy = playout.TrimPolicyCapTrim
	case "reject":
		cfg.TrimPolicy = playout.TrimPolicyReject
	default:
		return Config{}, fmt.Errorf("audio.trim_policy must be 'cap_trim' or 'reject', got %q", yc.Audio.TrimPolicy)
	}
	switch strings.ToLower(yc.Audio.OverflowPolicy) {
	case "", "drain_partial":
		cfg.OverflowPolicy = playout.OverflowDrainPartial
	case "refuse":
		cfg.OverflowPolicy = playout.OverflowRefuse
	default:
		return Config{}, fmt.Errorf("audio.overflow_policy must be 'drain_partial' or 'refuse', got %q", yc.Audio.OverflowPolicy)
	}
	cfg.TypingSoundsEnabled = yc.Audio.TypingSoundsEnabled

	if yc.Call.EstablishTimeout != "" {
		timeout, err := time.ParseDuration(yc.Call.EstablishTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("invalid call.establish_timeout: %w", err)
		}
		cfg.EstablishTimeout = timeout
	}
	if yc.Call.MaxActiveCalls > 0 {
		cfg.MaxActiveCalls = yc.Call.MaxActiveCalls
	}

	return cfg, nil
}
