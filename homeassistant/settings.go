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

package homeassistant

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

const (
	DefaultDiscoveryPrefix     = "homeassistant"
	DefaultAutoOffTimer        = 1800000 * time.Millisecond
	DefaultGatewayManufacturer = "OMG_community"
	DefaultGatewayName         = "OpenMQTTGateway"
)

// Settings is the discovery configuration. It is resolved once at startup
// and never modified afterwards.
type Settings struct {
	DiscoveryPrefix      string
	RepublishOnReconnect bool
	AutoOffTimer         time.Duration
	ForceDeviceName      bool

	GatewayName         string
	GatewayMAC          string
	GatewayManufacturer string
	GatewayModel        string
	GatewayVersion      string
	ConfigurationURL    string

	// BaseTopic is the root of the gateway's own topics. Entity topics
	// starting with "/" are relative to it.
	BaseTopic string
	// ListStateTopic is the root under which bridged devices published from
	// a sensor list report their state, one subtopic per device.
	ListStateTopic string
}

// DefaultSettings returns the settings the gateway ships with.
func DefaultSettings() Settings {
	return Settings{
		DiscoveryPrefix:     DefaultDiscoveryPrefix,
		AutoOffTimer:        DefaultAutoOffTimer,
		GatewayName:         DefaultGatewayName,
		GatewayManufacturer: DefaultGatewayManufacturer,
		GatewayModel:        "gateway-mate",
		BaseTopic:           "home/OpenMQTTGateway",
		ListStateTopic:      "home/OpenMQTTGateway/BTtoMQTT",
	}
}

// ResolveTopic expands a topic relative to the gateway base topic. Topics
// without a leading "/" are returned unchanged.
func (s *Settings) ResolveTopic(topic string) string {
	if strings.HasPrefix(topic, "/") {
		return strings.TrimSuffix(s.BaseTopic, "/") + topic
	}
	return topic
}

// GatewayID identifies the gateway in unique IDs, topics and the device
// registry. It is the normalized gateway MAC, or the gateway name when no MAC
// is known.
func (s *Settings) GatewayID() string {
	if mac := NormalizeMAC(s.GatewayMAC); mac != "" {
		return sanitizeID(mac)
	}
	return sanitizeID(s.GatewayName)
}

// NormalizeMAC strips separators from a MAC address and upper-cases it, so
// "aa:bb:cc:dd:ee:ff" and "AABBCCDDEEFF" identify the same device.
func NormalizeMAC(mac string) string {
	return strings.ToUpper(strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac))
}

// sanitizeID maps s onto [A-Za-z0-9_] so it can be joined with "-" into a
// unique ID. Strings that need rewriting get a hash of the original appended
// so that distinct inputs never share an ID.
func sanitizeID(s string) string {
	return sanitize(s, false)
}

// sanitizeTopicLevel is like sanitizeID but also keeps "-", which Home
// Assistant accepts in discovery topic levels. IDs built by GetUniqueID pass
// through unchanged.
func sanitizeTopicLevel(s string) string {
	return sanitize(s, true)
}

func sanitize(s string, keepDash bool) string {
	var b strings.Builder
	changed := false
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		case c == '-' && keepDash:
			b.WriteRune(c)
		default:
			b.WriteByte('_')
			changed = true
		}
	}
	if !changed {
		return s
	}
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%s_%08x", b.String(), h.Sum32())
}
