package config

import (
	"fmt"
	"unicode"
)

// ValidationResult separates configuration problems that must block startup
// (Fatals) from ones that are clamped to a safe value and merely logged
// (Warnings).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// AllErrors returns fatals followed by warnings, for callers that just want
// to log everything found.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidateTiered checks the config for invalid values. Dangerous zero or
// out-of-range values that would cause panics downstream (zero chunk size,
// zero FPS) are clamped to safe defaults and reported as warnings;
// structurally wrong values that have no safe default (a malformed auth
// token, a port outside 1-65535, equal server and relay ports) are fatal.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if c.AuthToken != "" {
		for _, ch := range c.AuthToken {
			if unicode.IsControl(ch) {
				r.Fatals = append(r.Fatals, fmt.Errorf("auth_token contains control characters"))
				break
			}
		}
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		r.Fatals = append(r.Fatals, fmt.Errorf("server.port %d is not a valid TCP port", c.ServerPort))
	}
	if c.RelayPort < 1 || c.RelayPort > 65535 {
		r.Fatals = append(r.Fatals, fmt.Errorf("relay.port %d is not a valid TCP port", c.RelayPort))
	}
	if c.ServerPort != 0 && c.ServerPort == c.RelayPort {
		r.Fatals = append(r.Fatals, fmt.Errorf("server.port and relay.port must differ, both are %d", c.ServerPort))
	}

	if c.RelayMaxReconnectAttempts < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("relay.max_reconnect_attempts %d is below minimum 1, clamping", c.RelayMaxReconnectAttempts))
		c.RelayMaxReconnectAttempts = 1
	} else if c.RelayMaxReconnectAttempts > 1000 {
		r.Warnings = append(r.Warnings, fmt.Errorf("relay.max_reconnect_attempts %d exceeds maximum 1000, clamping", c.RelayMaxReconnectAttempts))
		c.RelayMaxReconnectAttempts = 1000
	}

	if c.RelayReconnectDelaySecs < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("relay.reconnect_delay_secs %d is below minimum 1, clamping", c.RelayReconnectDelaySecs))
		c.RelayReconnectDelaySecs = 1
	} else if c.RelayReconnectDelaySecs > 300 {
		r.Warnings = append(r.Warnings, fmt.Errorf("relay.reconnect_delay_secs %d exceeds maximum 300, clamping", c.RelayReconnectDelaySecs))
		c.RelayReconnectDelaySecs = 300
	}

	if c.RelayKeepaliveIntervalSecs < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("relay.keepalive_interval_secs %d is below minimum 1, clamping", c.RelayKeepaliveIntervalSecs))
		c.RelayKeepaliveIntervalSecs = 1
	}
	if c.RelayKeepaliveTimeoutSecs <= c.RelayKeepaliveIntervalSecs {
		r.Warnings = append(r.Warnings, fmt.Errorf("relay.keepalive_timeout_secs %d must exceed relay.keepalive_interval_secs %d, clamping", c.RelayKeepaliveTimeoutSecs, c.RelayKeepaliveIntervalSecs))
		c.RelayKeepaliveTimeoutSecs = c.RelayKeepaliveIntervalSecs * 2
	}

	if c.TransferChunkBytes < 4096 {
		r.Warnings = append(r.Warnings, fmt.Errorf("transfer.chunk_bytes %d is below minimum 4096, clamping", c.TransferChunkBytes))
		c.TransferChunkBytes = 4096
	} else if c.TransferChunkBytes > 8<<20 {
		r.Warnings = append(r.Warnings, fmt.Errorf("transfer.chunk_bytes %d exceeds maximum 8MiB, clamping", c.TransferChunkBytes))
		c.TransferChunkBytes = 8 << 20
	}

	if c.CaptureTargetFPS < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("capture.target_fps %d is below minimum 1, clamping", c.CaptureTargetFPS))
		c.CaptureTargetFPS = 1
	} else if c.CaptureTargetFPS > 60 {
		r.Warnings = append(r.Warnings, fmt.Errorf("capture.target_fps %d exceeds maximum 60, clamping", c.CaptureTargetFPS))
		c.CaptureTargetFPS = 60
	}

	if c.LogLevel != "" && !validLogLevels[c.LogLevel] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
		c.LogFormat = "text"
	}

	return r
}
