/*
 * This file is part of the gateway-mate distribution (https://github.com/mlipscombe/gateway-mate).
 * Copyright (c) 2021-2026 Mark Lipscombe.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, version 3.
 *
 * This program is distributed in the hope that it will be useful, but
 * WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
 * General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 */

package config

import (
	"flag"
	"io"
	"net"
	"os"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupEnvOrString(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultVal   string
		expected     string
		shouldSetEnv bool
	}{
		{
			name:         "returns default when env not set",
			key:          "TEST_KEY_NOT_SET",
			defaultVal:   "default_value",
			expected:     "default_value",
			shouldSetEnv: false,
		},
		{
			name:         "returns env value when set",
			key:          "TEST_KEY_SET",
			envValue:     "env_value",
			defaultVal:   "default_value",
			expected:     "env_value",
			shouldSetEnv: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSetEnv {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			result := lookupEnvOrString(tt.key, tt.defaultVal)
			if result != tt.expected {
				t.Errorf("lookupEnvOrString() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestLookupEnvOrBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultVal   bool
		expected     bool
		shouldSetEnv bool
	}{
		{
			name:         "returns default when env not set",
			key:          "TEST_BOOL_NOT_SET",
			defaultVal:   true,
			expected:     true,
			shouldSetEnv: false,
		},
		{
			name:         "returns true for 'true'",
			key:          "TEST_BOOL_TRUE",
			envValue:     "true",
			defaultVal:   false,
			expected:     true,
			shouldSetEnv: true,
		},
		{
			name:         "returns true for '1'",
			key:          "TEST_BOOL_ONE",
			envValue:     "1",
			defaultVal:   false,
			expected:     true,
			shouldSetEnv: true,
		},
		{
			name:         "returns true for 'yes'",
			key:          "TEST_BOOL_YES",
			envValue:     "yes",
			defaultVal:   false,
			expected:     true,
			shouldSetEnv: true,
		},
		{
			name:         "returns false for 'false'",
			key:          "TEST_BOOL_FALSE",
			envValue:     "false",
			defaultVal:   true,
			expected:     false,
			shouldSetEnv: true,
		},
		{
			name:         "returns false for any other value",
			key:          "TEST_BOOL_OTHER",
			envValue:     "whatever",
			defaultVal:   true,
			expected:     false,
			shouldSetEnv: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSetEnv {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			result := lookupEnvOrBool(tt.key, tt.defaultVal)
			if result != tt.expected {
				t.Errorf("lookupEnvOrBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestLookupEnvOrDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultVal   time.Duration
		expected     time.Duration
		shouldSetEnv bool
	}{
		{
			name:       "returns default when env not set",
			key:        "TEST_DURATION_NOT_SET",
			defaultVal: time.Minute,
			expected:   time.Minute,
		},
		{
			name:         "parses go durations",
			key:          "TEST_DURATION_GO",
			envValue:     "45m",
			defaultVal:   time.Minute,
			expected:     45 * time.Minute,
			shouldSetEnv: true,
		},
		{
			name:         "treats plain numbers as milliseconds",
			key:          "TEST_DURATION_MS",
			envValue:     "1800000",
			defaultVal:   time.Minute,
			expected:     30 * time.Minute,
			shouldSetEnv: true,
		},
		{
			name:         "zero disables",
			key:          "TEST_DURATION_ZERO",
			envValue:     "0",
			defaultVal:   time.Minute,
			expected:     0,
			shouldSetEnv: true,
		},
		{
			name:         "returns default for garbage",
			key:          "TEST_DURATION_GARBAGE",
			envValue:     "soon",
			defaultVal:   time.Minute,
			expected:     time.Minute,
			shouldSetEnv: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSetEnv {
				t.Setenv(tt.key, tt.envValue)
			}

			assert.Equal(t, tt.expected, lookupEnvOrDuration(tt.key, tt.defaultVal))
		})
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:2112", cfg.Bind)
	assert.Equal(t, "mqtt://localhost:1883", cfg.MQTTURL)
	assert.True(t, cfg.HADiscovery)
	assert.Equal(t, "", cfg.DevicesFile)
	assert.Equal(t, 2*time.Minute, cfg.StatusInterval)
	assert.Equal(t, "homeassistant", cfg.DiscoveryPrefix)
	assert.False(t, cfg.DiscoveryRepublish)
	assert.Equal(t, 30*time.Minute, cfg.DiscoveryAutoOff)
	assert.False(t, cfg.ForceDeviceName)
	assert.Equal(t, "OpenMQTTGateway", cfg.GatewayName)
	assert.Equal(t, "OMG_community", cfg.GatewayManufacturer)
}

func TestParseEnvironmentOverride(t *testing.T) {
	t.Setenv("GATEWAY_MATE_DISCOVERY_PREFIX", "ha")
	t.Setenv("GATEWAY_MATE_DISCOVERY_REPUBLISH", "true")
	t.Setenv("GATEWAY_MATE_DISCOVERY_AUTO_OFF", "0")
	t.Setenv("GATEWAY_MATE_GATEWAY_MAC", "AA:BB:CC:DD:EE:FF")

	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	require.NoError(t, err)

	assert.Equal(t, "ha", cfg.DiscoveryPrefix)
	assert.True(t, cfg.DiscoveryRepublish)
	assert.Equal(t, time.Duration(0), cfg.DiscoveryAutoOff)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.GatewayMAC)
}

func TestParseFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("GATEWAY_MATE_GATEWAY_NAME", "from-env")

	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), []string{
		"-gateway-name", "from-flag",
		"-discovery-auto-off", "5m",
		"-force-device-name",
		"-devices", "/etc/gateway-mate/devices.yaml",
	})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.GatewayName)
	assert.Equal(t, 5*time.Minute, cfg.DiscoveryAutoOff)
	assert.True(t, cfg.ForceDeviceName)
	assert.Equal(t, "/etc/gateway-mate/devices.yaml", cfg.DevicesFile)
}

func TestParseDurationFlagsAcceptMilliseconds(t *testing.T) {
	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), []string{
		"-discovery-auto-off=1800000",
		"-status-interval", "90s",
	})
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.DiscoveryAutoOff)
	assert.Equal(t, 90*time.Second, cfg.StatusInterval)
}

func TestParseRejectsInvalidDuration(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	_, err := parse(fs, []string{"-discovery-auto-off", "soon"})
	assert.Error(t, err)
}

func TestParseRejectsUnknownFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	_, err := parse(fs, []string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestDetectMAC(t *testing.T) {
	mac := detectMAC()
	if mac == "" {
		t.Skip("no suitable network interface")
	}
	_, err := net.ParseMAC(mac)
	assert.NoError(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())

	(&Config{LogLevel: "debug"}).SetupLogging()
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	(&Config{LogLevel: "nonsense"}).SetupLogging()
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
