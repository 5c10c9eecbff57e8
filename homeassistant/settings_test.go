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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTopic(t *testing.T) {
	s := Settings{BaseTopic: "home/OMG_test/"}

	tests := []struct {
		topic    string
		expected string
	}{
		{"/SYStoMQTT", "home/OMG_test/SYStoMQTT"},
		{"/LWT", "home/OMG_test/LWT"},
		{"other/topic", "other/topic"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.ResolveTopic(tt.topic))
		})
	}

	assert.Equal(t, "home/OMG_test/LWT", s.ResolveTopic(LWTTopic))
}

func TestNormalizeMAC(t *testing.T) {
	for _, in := range []string{"aa:bb:cc:dd:ee:ff", "AA-BB-CC-DD-EE-FF", "aabb.ccdd.eeff", "AABBCCDDEEFF"} {
		assert.Equal(t, "AABBCCDDEEFF", NormalizeMAC(in), in)
	}
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "tempc", sanitizeID("tempc"))
	assert.Equal(t, "temp_c", sanitizeID("temp_c"))
	assert.Equal(t, sanitizeID("SYS: Uptime"), sanitizeID("SYS: Uptime"))
	assert.NotEqual(t, sanitizeID("a b"), sanitizeID("a_b"))
	assert.NotEqual(t, sanitizeID("a b"), sanitizeID("a-b"))
	assert.True(t, strings.HasPrefix(sanitizeID("a/b"), "a_b_"))
}

func TestSanitizeTopicLevel(t *testing.T) {
	assert.Equal(t, "AABBCCDDEEFF-tempc", sanitizeTopicLevel("AABBCCDDEEFF-tempc"))
	assert.Equal(t, "a_b", sanitizeTopicLevel("a_b"))
	assert.NotEqual(t, sanitizeTopicLevel("a/b"), sanitizeTopicLevel("a_b"))
	assert.True(t, strings.HasPrefix(sanitizeTopicLevel("a+b#"), "a_b__"))
}

func TestGatewayID(t *testing.T) {
	s := Settings{GatewayMAC: "aa:bb:cc:dd:ee:ff", GatewayName: "OMG_test"}
	assert.Equal(t, "AABBCCDDEEFF", s.GatewayID())

	s.GatewayMAC = ""
	assert.Equal(t, "OMG_test", s.GatewayID())

	s.GatewayName = "Attic gateway"
	assert.Regexp(t, `^Attic_gateway_[0-9a-f]{8}$`, s.GatewayID())
}

func TestValidDeviceClassAndUnit(t *testing.T) {
	assert.True(t, ValidDeviceClass(""))
	assert.True(t, ValidDeviceClass("temperature"))
	assert.False(t, ValidDeviceClass("Temperature"))
	assert.True(t, ValidUnit(""))
	assert.True(t, ValidUnit("°C"))
	assert.True(t, ValidUnit("UV index"))
	assert.False(t, ValidUnit("XX"))
}

func TestResolveTemplate(t *testing.T) {
	assert.Equal(t, "{{ value_json.batt | is_defined }}", ResolveTemplate("batt"))
	assert.Equal(t, "{{ value_json.uptime }}", ResolveTemplate("{{ value_json.uptime }}"))
	assert.Equal(t, "unknown_field", ResolveTemplate("unknown_field"))
	assert.Equal(t, "", ResolveTemplate(""))

	for name, tmpl := range ValueTemplates {
		assert.Contains(t, tmpl, "value_json", name)
	}
}
