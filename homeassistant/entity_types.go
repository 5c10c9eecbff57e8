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
	"errors"
	"fmt"
)

var (
	// ErrUnknownDeviceClass is returned when an entity names a device class
	// Home Assistant does not define.
	ErrUnknownDeviceClass = errors.New("unknown device class")
	// ErrUnknownUnit is returned when an entity names a unit of measurement
	// Home Assistant does not define.
	ErrUnknownUnit = errors.New("unknown unit of measurement")
	// ErrMissingField is returned when a required descriptor field is empty.
	ErrMissingField = errors.New("missing required field")
)

// DeviceDescriptor identifies the device an entity is attached to in the
// Home Assistant device registry.
type DeviceDescriptor struct {
	MAC              string
	Name             string
	Manufacturer     string
	Model            string
	SWVersion        string
	ConfigurationURL string
}

// EntityDescriptor describes a single Home Assistant entity. Empty optional
// fields are left out of the discovery payload entirely.
type EntityDescriptor struct {
	Component           Component
	StateTopic          string
	Name                string
	UniqueID            string
	AvailabilityTopic   string
	DeviceClass         string
	ValueTemplate       string
	PayloadOn           string
	PayloadOff          string
	Unit                string
	OffDelay            int // seconds, <= 0 disables
	PayloadAvailable    string
	PayloadNotAvailable string
	GatewayEntity       bool
	CommandTopic        string
	Device              DeviceDescriptor // ignored when GatewayEntity is set
	Retain              bool
	StateClass          string
	StateOff            string
	StateOn             string
	EnumOptions         []string
	CommandTemplate     string
	Icon                string
	EntityCategory      string
}

// TriggerDescriptor describes a device trigger (device_automation) that is
// attached to the gateway device.
type TriggerDescriptor struct {
	Topic         string
	Type          string
	Subtype       string
	ObjectID      string
	ValueTemplate string
}

// SensorListRow is the compact, fixed-width form of an entity used for bulk
// publication. Columns are addressed with the Row* constants.
type SensorListRow [9]string

const (
	RowComponent = iota
	RowName
	RowAvailabilityTopic
	RowDeviceClass
	RowValueTemplate
	RowPayloadOn
	RowPayloadOff
	RowUnit
	RowUnitReserved
)

// Validate checks the descriptor against the known device class and unit
// lists.
func (e *EntityDescriptor) Validate() error {
	if e.Component == "" {
		return fmt.Errorf("%s: component: %w", e.Name, ErrMissingField)
	}
	if e.UniqueID == "" {
		return fmt.Errorf("%s: unique_id: %w", e.Name, ErrMissingField)
	}
	if !ValidDeviceClass(e.DeviceClass) {
		return fmt.Errorf("%s: %q: %w", e.UniqueID, e.DeviceClass, ErrUnknownDeviceClass)
	}
	if !ValidUnit(e.Unit) {
		return fmt.Errorf("%s: %q: %w", e.UniqueID, e.Unit, ErrUnknownUnit)
	}
	return nil
}

// Build creates the MQTT discovery message for this entity
func (e *EntityDescriptor) Build(s *Settings, devBlock map[string]interface{}) map[string]interface{} {
	config := map[string]interface{}{
		"name":      e.Name,
		"unique_id": e.UniqueID,
		"device":    devBlock,
	}

	// Add optional fields only if they're set
	if e.StateTopic != "" {
		config["state_topic"] = s.ResolveTopic(e.StateTopic)
	}
	if e.CommandTopic != "" {
		config["command_topic"] = s.ResolveTopic(e.CommandTopic)
	}
	if e.DeviceClass != "" {
		config["device_class"] = e.DeviceClass
	}
	if e.StateClass != "" {
		config["state_class"] = e.StateClass
	}
	if e.ValueTemplate != "" {
		config["value_template"] = ResolveTemplate(e.ValueTemplate)
	}
	if e.Unit != "" {
		config["unit_of_measurement"] = e.Unit
	}
	if e.PayloadOn != "" {
		// Buttons only have a press payload
		if e.Component == Button {
			config["payload_press"] = e.PayloadOn
		} else {
			config["payload_on"] = e.PayloadOn
		}
	}
	if e.PayloadOff != "" {
		config["payload_off"] = e.PayloadOff
	}
	if e.OffDelay > 0 {
		config["off_delay"] = e.OffDelay
	}
	if e.Retain {
		config["retain"] = true
	}
	if e.Icon != "" {
		config["icon"] = e.Icon
	}
	if e.EntityCategory != "" {
		config["entity_category"] = e.EntityCategory
	}

	if e.AvailabilityTopic != "" {
		config["availability_topic"] = s.ResolveTopic(e.AvailabilityTopic)
		if e.PayloadAvailable != "" {
			config["payload_available"] = e.PayloadAvailable
		}
		if e.PayloadNotAvailable != "" {
			config["payload_not_available"] = e.PayloadNotAvailable
		}
	}

	if e.StateOn != "" {
		config["state_on"] = e.StateOn
	}
	if e.StateOff != "" {
		config["state_off"] = e.StateOff
	}
	if len(e.EnumOptions) > 0 {
		config["options"] = e.EnumOptions
	}
	if e.CommandTemplate != "" {
		config["command_template"] = e.CommandTemplate
	}

	return config
}

// GetDiscoveryTopic returns the MQTT discovery topic for this entity
func (e *EntityDescriptor) GetDiscoveryTopic(s *Settings) string {
	node := s.GatewayID()
	if !e.GatewayEntity && e.Device.MAC != "" {
		node = sanitizeID(NormalizeMAC(e.Device.MAC))
	}
	return fmt.Sprintf("%s/%s/%s/%s/config", s.DiscoveryPrefix, e.Component, node, sanitizeTopicLevel(e.UniqueID))
}

// Build creates the device trigger discovery message.
func (t *TriggerDescriptor) Build(s *Settings, devBlock map[string]interface{}) map[string]interface{} {
	config := map[string]interface{}{
		"automation_type": "trigger",
		"topic":           s.ResolveTopic(t.Topic),
		"type":            t.Type,
		"subtype":         t.Subtype,
		"device":          devBlock,
	}
	if t.ValueTemplate != "" {
		config["value_template"] = ResolveTemplate(t.ValueTemplate)
	}
	return config
}
