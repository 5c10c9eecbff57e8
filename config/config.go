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
	"net"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Config holds application configuration
type Config struct {
	LogLevel       string
	Bind           string
	MQTTURL        string
	HADiscovery    bool
	DevicesFile    string
	StatusInterval time.Duration

	DiscoveryPrefix     string
	DiscoveryRepublish  bool
	DiscoveryAutoOff    time.Duration
	ForceDeviceName     bool
	GatewayName         string
	GatewayMAC          string
	GatewayManufacturer string
}

// Load parses command-line flags and environment variables
func Load() *Config {
	cfg, _ := parse(flag.CommandLine, os.Args[1:])
	return cfg
}

func parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	fs.StringVar(&cfg.LogLevel, "log-level", lookupEnvOrString("GATEWAY_MATE_LOG_LEVEL", "INFO"), "logging level")
	fs.StringVar(&cfg.Bind, "bind", lookupEnvOrString("GATEWAY_MATE_BIND", "0.0.0.0:2112"), "address to bind for healthz and prometheus metrics endpoints (default 0.0.0.0:2112), or \"false\" to disable")
	fs.StringVar(&cfg.MQTTURL, "mqtt", lookupEnvOrString("GATEWAY_MATE_MQTT", "mqtt://localhost:1883"), "MQTT URI, in the format mqtt[s]://[<user>:<password>]@<host>:<port>[/<base topic>]")
	fs.BoolVar(&cfg.HADiscovery, "homeassistant", lookupEnvOrBool("GATEWAY_MATE_HOMEASSISTANT", true), "enable Home Assistant autodiscovery (default: true)")
	fs.StringVar(&cfg.DevicesFile, "devices", lookupEnvOrString("GATEWAY_MATE_DEVICES", ""), "YAML catalog of bridged devices to announce")
	cfg.StatusInterval = lookupEnvOrDuration("GATEWAY_MATE_STATUS_INTERVAL", 2*time.Minute)
	fs.Var((*durationValue)(&cfg.StatusInterval), "status-interval", "interval between system status messages, as a duration or milliseconds")

	fs.StringVar(&cfg.DiscoveryPrefix, "discovery-prefix", lookupEnvOrString("GATEWAY_MATE_DISCOVERY_PREFIX", "homeassistant"), "Home Assistant discovery prefix")
	fs.BoolVar(&cfg.DiscoveryRepublish, "discovery-republish", lookupEnvOrBool("GATEWAY_MATE_DISCOVERY_REPUBLISH", false), "republish discovery on every reconnect instead of only the first connect")
	cfg.DiscoveryAutoOff = lookupEnvOrDuration("GATEWAY_MATE_DISCOVERY_AUTO_OFF", 1800000*time.Millisecond)
	fs.Var((*durationValue)(&cfg.DiscoveryAutoOff), "discovery-auto-off", "switch discovery off this long after it was published, as a duration or milliseconds, 0 to keep it on")
	fs.BoolVar(&cfg.ForceDeviceName, "force-device-name", lookupEnvOrBool("GATEWAY_MATE_FORCE_DEVICE_NAME", false), "use bridged device names as is instead of appending the end of the MAC")
	fs.StringVar(&cfg.GatewayName, "gateway-name", lookupEnvOrString("GATEWAY_MATE_GATEWAY_NAME", "OpenMQTTGateway"), "gateway name, used in topics and as the Home Assistant device name")
	fs.StringVar(&cfg.GatewayMAC, "gateway-mac", lookupEnvOrString("GATEWAY_MATE_GATEWAY_MAC", detectMAC()), "gateway MAC address, seeds all gateway unique IDs")
	fs.StringVar(&cfg.GatewayManufacturer, "gateway-manufacturer", lookupEnvOrString("GATEWAY_MATE_GATEWAY_MANUFACTURER", "OMG_community"), "gateway manufacturer shown in Home Assistant")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogging configures the logging level
func (cfg *Config) SetupLogging() {
	log.SetFormatter(&log.TextFormatter{})
	ll, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		ll = log.InfoLevel
	}
	log.SetLevel(ll)
}

func lookupEnvOrString(key string, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func lookupEnvOrBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		return false
	}
	return defaultVal
}

// parseDuration accepts Go durations ("30m") or plain milliseconds.
func parseDuration(val string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(val)
}

// durationValue is a flag.Value accepting the same forms as the environment.
type durationValue time.Duration

func (d *durationValue) String() string {
	return time.Duration(*d).String()
}

func (d *durationValue) Set(val string) error {
	v, err := parseDuration(val)
	if err != nil {
		return err
	}
	*d = durationValue(v)
	return nil
}

func lookupEnvOrDuration(key string, defaultVal time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	d, err := parseDuration(val)
	if err != nil {
		log.Warnf("Ignoring invalid duration %s=%q: %v", key, val, err)
		return defaultVal
	}
	return d
}

// detectMAC returns the hardware address of the first interface that is up
// and not a loopback.
func detectMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 6 {
			return iface.HardwareAddr.String()
		}
	}
	return ""
}
