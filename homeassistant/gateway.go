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
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Gateway topics, relative to Settings.BaseTopic.
const (
	LWTTopic           = "/LWT"
	SystemStateTopic   = "/SYStoMQTT"
	SystemCommandTopic = "/commands/MQTTtoSYS/config"
)

// ErrUnknownCommand is returned by HandleCommand for commands it does not
// implement.
var ErrUnknownCommand = errors.New("unknown command")

// Command is the JSON document accepted on SystemCommandTopic.
type Command struct {
	Discovery *bool  `json:"disc,omitempty"`
	Cmd       string `json:"cmd,omitempty"`
}

func (p *Publisher) gatewayEntities() []EntityDescriptor {
	return []EntityDescriptor{
		{
			Component:      BinarySensor,
			Name:           "SYS: Connectivity",
			UniqueID:       p.GetUniqueID("connectivity", ""),
			StateTopic:     LWTTopic,
			DeviceClass:    "connectivity",
			PayloadOn:      "online",
			PayloadOff:     "offline",
			GatewayEntity:  true,
			EntityCategory: CategoryDiagnostic,
		},
		{
			Component:           Sensor,
			Name:                "SYS: Uptime",
			UniqueID:            p.GetUniqueID("uptime", ""),
			StateTopic:          SystemStateTopic,
			AvailabilityTopic:   LWTTopic,
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
			DeviceClass:         "duration",
			ValueTemplate:       "{{ value_json.uptime }}",
			Unit:                "s",
			StateClass:          StateClassMeasurement,
			GatewayEntity:       true,
			EntityCategory:      CategoryDiagnostic,
		},
		{
			Component:           Sensor,
			Name:                "SYS: Free memory",
			UniqueID:            p.GetUniqueID("freemem", ""),
			StateTopic:          SystemStateTopic,
			AvailabilityTopic:   LWTTopic,
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
			DeviceClass:         "data_size",
			ValueTemplate:       "{{ value_json.freemem }}",
			Unit:                "B",
			StateClass:          StateClassMeasurement,
			GatewayEntity:       true,
			EntityCategory:      CategoryDiagnostic,
		},
		{
			Component:           Sensor,
			Name:                "SYS: Goroutines",
			UniqueID:            p.GetUniqueID("goroutines", ""),
			StateTopic:          SystemStateTopic,
			AvailabilityTopic:   LWTTopic,
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
			ValueTemplate:       "{{ value_json.goroutines }}",
			StateClass:          StateClassMeasurement,
			Icon:                "mdi:cog",
			GatewayEntity:       true,
			EntityCategory:      CategoryDiagnostic,
		},
		{
			Component:           Sensor,
			Name:                "SYS: Version",
			UniqueID:            p.GetUniqueID("version", ""),
			StateTopic:          SystemStateTopic,
			AvailabilityTopic:   LWTTopic,
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
			ValueTemplate:       "{{ value_json.version }}",
			Icon:                "mdi:tag",
			GatewayEntity:       true,
			EntityCategory:      CategoryDiagnostic,
		},
		{
			Component:           Switch,
			Name:                "SYS: Auto discovery",
			UniqueID:            p.GetUniqueID("disc", ""),
			StateTopic:          SystemStateTopic,
			CommandTopic:        SystemCommandTopic,
			AvailabilityTopic:   LWTTopic,
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
			ValueTemplate:       "{{ value_json.disc }}",
			PayloadOn:           `{"disc":true}`,
			PayloadOff:          `{"disc":false}`,
			StateOn:             "True",
			StateOff:            "False",
			Icon:                "mdi:magnify",
			GatewayEntity:       true,
			EntityCategory:      CategoryConfig,
		},
		{
			Component:           Button,
			Name:                "SYS: Republish discovery",
			UniqueID:            p.GetUniqueID("republish", ""),
			CommandTopic:        SystemCommandTopic,
			AvailabilityTopic:   LWTTopic,
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
			PayloadOn:           `{"cmd":"discovery"}`,
			Icon:                "mdi:refresh",
			GatewayEntity:       true,
			EntityCategory:      CategoryConfig,
		},
	}
}

func (p *Publisher) publishGatewayEntities() int {
	count := 0
	for _, e := range p.gatewayEntities() {
		if err := p.CreateDiscovery(e); err != nil {
			log.Errorf("Error publishing discovery message for %s: %v", e.Name, err)
			continue
		}
		count++
	}
	return count
}

// HandleCommand applies a Command received on SystemCommandTopic.
func (p *Publisher) HandleCommand(payload []byte) error {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decoding command %q: %w", payload, err)
	}

	if cmd.Discovery != nil {
		p.SetDiscoveryEnabled(*cmd.Discovery)
	}

	switch cmd.Cmd {
	case "":
	case "discovery":
		p.Republish()
	default:
		return fmt.Errorf("%q: %w", cmd.Cmd, ErrUnknownCommand)
	}
	return nil
}
