package config

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateTieredControlCharsInTokenIsFatal(t *testing.T) {
	cfg := Default()
	cfg.AuthToken = "token\x00with\x01control"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("control chars in token should be fatal")
	}
}

func TestValidateTieredInvalidPortIsFatal(t *testing.T) {
	cfg := Default()
	cfg.RelayPort = 70000
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("out-of-range relay.port should be fatal")
	}
}

func TestValidateTieredClashingPortsIsFatal(t *testing.T) {
	cfg := Default()
	cfg.ServerPort = 21117
	cfg.RelayPort = 21117
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("identical server.port and relay.port should be fatal")
	}
}

func TestValidateTieredReconnectAttemptsClampingIsWarning(t *testing.T) {
	cfg := Default()
	cfg.RelayMaxReconnectAttempts = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped reconnect attempts should be warning, not fatal: %v", result.Fatals)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for clamped reconnect attempts")
	}
	if cfg.RelayMaxReconnectAttempts != 1 {
		t.Fatalf("RelayMaxReconnectAttempts = %d, want 1 (clamped)", cfg.RelayMaxReconnectAttempts)
	}
}

func TestValidateTieredReconnectAttemptsHighClampingIsWarning(t *testing.T) {
	cfg := Default()
	cfg.RelayMaxReconnectAttempts = 999999
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped reconnect attempts should be warning, not fatal: %v", result.Fatals)
	}
	if cfg.RelayMaxReconnectAttempts != 1000 {
		t.Fatalf("RelayMaxReconnectAttempts = %d, want 1000 (clamped)", cfg.RelayMaxReconnectAttempts)
	}
}

func TestValidateTieredKeepaliveTimeoutMustExceedInterval(t *testing.T) {
	cfg := Default()
	cfg.RelayKeepaliveIntervalSecs = 30
	cfg.RelayKeepaliveTimeoutSecs = 10
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped keepalive timeout should be warning: %v", result.Fatals)
	}
	if cfg.RelayKeepaliveTimeoutSecs != 60 {
		t.Fatalf("RelayKeepaliveTimeoutSecs = %d, want 60 (clamped to 2x interval)", cfg.RelayKeepaliveTimeoutSecs)
	}
}

func TestValidateTieredChunkBytesClamping(t *testing.T) {
	cfg := Default()
	cfg.TransferChunkBytes = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped chunk bytes should be warning: %v", result.Fatals)
	}
	if cfg.TransferChunkBytes != 4096 {
		t.Fatalf("TransferChunkBytes = %d, want 4096", cfg.TransferChunkBytes)
	}

	cfg2 := Default()
	cfg2.TransferChunkBytes = 64 << 20
	cfg2.ValidateTiered()
	if cfg2.TransferChunkBytes != 8<<20 {
		t.Fatalf("TransferChunkBytes = %d, want clamped to 8MiB", cfg2.TransferChunkBytes)
	}
}

func TestValidateTieredTargetFPSClamping(t *testing.T) {
	cfg := Default()
	cfg.CaptureTargetFPS = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped target fps should be warning: %v", result.Fatals)
	}
	if cfg.CaptureTargetFPS != 1 {
		t.Fatalf("CaptureTargetFPS = %d, want 1", cfg.CaptureTargetFPS)
	}
}

func TestValidateTieredUnknownLogLevelIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want reset to info", cfg.LogLevel)
	}
}

func TestValidateTieredInvalidLogFormatIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("invalid log format should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for invalid log format")
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestAllErrorsReturnsBoth(t *testing.T) {
	cfg := Default()
	cfg.RelayPort = 99999          // fatal
	cfg.CaptureTargetFPS = 0       // warning

	result := cfg.ValidateTiered()
	all := result.AllErrors()
	if len(all) < 2 {
		t.Fatalf("AllErrors() returned %d errors, expected at least 2 (fatals + warnings)", len(all))
	}
	if !strings.Contains(all[0].Error(), "relay.port") {
		t.Fatalf("expected fatals first in AllErrors(), got %v", all)
	}
}

func TestValidConfigHasNoErrors(t *testing.T) {
	cfg := Default()
	cfg.AuthToken = "clean-token"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("valid config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("valid config has warnings: %v", result.Warnings)
	}
}
