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
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Transport publishes a payload to a topic. Implementations must not block
// waiting for the broker to acknowledge the message.
type Transport interface {
	Publish(topic string, payload []byte, retain bool) error
}

// Source publishes discovery for a group of bridged devices. Sources run on
// every discovery cycle while discovery is enabled.
type Source func(p *Publisher)

type stopper interface {
	Stop() bool
}

// Publisher builds Home Assistant MQTT discovery messages and hands them to
// the transport, retained.
type Publisher struct {
	settings  Settings
	transport Transport
	metrics   *Metrics
	afterFunc func(time.Duration, func()) stopper

	mu         sync.Mutex
	published  bool
	enabled    bool
	timer      stopper
	generation uint64
	sources    []Source
	gateway    []Source
	onChange   []func(enabled bool)
}

// NewPublisher returns a Publisher with discovery enabled. metrics may be
// nil.
func NewPublisher(settings Settings, transport Transport, metrics *Metrics) *Publisher {
	settings.DiscoveryPrefix = strings.Trim(settings.DiscoveryPrefix, "/")
	if settings.DiscoveryPrefix == "" {
		settings.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if settings.GatewayName == "" {
		settings.GatewayName = DefaultGatewayName
	}
	if settings.GatewayManufacturer == "" {
		settings.GatewayManufacturer = DefaultGatewayManufacturer
	}
	return &Publisher{
		settings:  settings,
		transport: transport,
		metrics:   metrics,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		enabled: true,
	}
}

// Settings returns a copy of the publisher's settings.
func (p *Publisher) Settings() Settings {
	return p.settings
}

// AddSource registers a group of bridged devices to publish on each cycle.
func (p *Publisher) AddSource(src Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = append(p.sources, src)
}

// AddGatewaySource registers discovery attached to the gateway device, such
// as device triggers. Gateway sources run on every cycle, even while
// discovery of bridged devices is off.
func (p *Publisher) AddGatewaySource(src Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gateway = append(p.gateway, src)
}

// OnDiscoveryChange registers fn to be called whenever discovery is switched
// on or off, including by the auto-off timer.
func (p *Publisher) OnDiscoveryChange(fn func(enabled bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// GetUniqueID derives the ID of a gateway entity from its name and an
// optional suffix. The result only depends on the gateway ID and the
// arguments, so it survives restarts.
func (p *Publisher) GetUniqueID(name, suffix string) string {
	id := p.settings.GatewayID() + "-" + sanitizeID(name)
	if suffix != "" {
		id += "-" + sanitizeID(suffix)
	}
	return id
}

// CreateDiscovery validates e and publishes its discovery message. Nothing is
// published when validation fails.
func (p *Publisher) CreateDiscovery(e EntityDescriptor) error {
	if err := e.Validate(); err != nil {
		log.Errorf("Invalid discovery entity: %v", err)
		p.metrics.incRejected(err)
		return err
	}

	config := e.Build(&p.settings, p.deviceBlockFor(&e))
	topic := e.GetDiscoveryTopic(&p.settings)
	return p.publish(e.Component, topic, config)
}

// CreateDiscoveryFromList publishes up to count rows for the device with the
// given MAC and returns how many were published. Invalid rows are logged and
// skipped.
func (p *Publisher) CreateDiscoveryFromList(mac string, rows []SensorListRow, count int, name, manufacturer, model string) int {
	if count > len(rows) {
		count = len(rows)
	}
	device := DeviceDescriptor{
		MAC:          mac,
		Name:         name,
		Manufacturer: manufacturer,
		Model:        model,
	}
	id := sanitizeID(NormalizeMAC(mac))
	stateTopic := strings.TrimSuffix(p.settings.ListStateTopic, "/") + "/" + id

	published := 0
	for i := 0; i < count; i++ {
		row := rows[i]
		e := EntityDescriptor{
			Component:         Component(row[RowComponent]),
			StateTopic:        stateTopic,
			Name:              row[RowName],
			UniqueID:          id + "-" + sanitizeID(row[RowName]),
			AvailabilityTopic: row[RowAvailabilityTopic],
			DeviceClass:       row[RowDeviceClass],
			ValueTemplate:     row[RowValueTemplate],
			PayloadOn:         row[RowPayloadOn],
			PayloadOff:        row[RowPayloadOff],
			Unit:              row[RowUnit],
			Device:            device,
		}
		if e.Component == Sensor && e.Unit != "" {
			e.StateClass = StateClassMeasurement
		}
		if err := p.CreateDiscovery(e); err == nil {
			published++
		}
	}
	log.Debugf("Published %d of %d entities for %s", published, count, mac)
	return published
}

// AnnounceGatewayTrigger publishes a device trigger attached to the gateway.
func (p *Publisher) AnnounceGatewayTrigger(topic, triggerType, subtype, objectID, valueTemplate string) error {
	t := TriggerDescriptor{
		Topic:         topic,
		Type:          triggerType,
		Subtype:       subtype,
		ObjectID:      objectID,
		ValueTemplate: valueTemplate,
	}
	required := []struct{ field, value string }{
		{"topic", topic},
		{"type", triggerType},
		{"subtype", subtype},
		{"object_id", objectID},
	}
	for _, r := range required {
		if r.value == "" {
			err := fmt.Errorf("trigger %s: %s: %w", objectID, r.field, ErrMissingField)
			log.Errorf("Invalid device trigger: %v", err)
			p.metrics.incRejected(err)
			return err
		}
	}

	config := t.Build(&p.settings, p.gatewayBlock())
	discoveryTopic := fmt.Sprintf("%s/%s/%s/config", p.settings.DiscoveryPrefix, DeviceAutomation, p.GetUniqueID(objectID, ""))
	return p.publish(DeviceAutomation, discoveryTopic, config)
}

// PubMqttDiscovery runs a discovery cycle. It is called on every connection
// to the broker; unless RepublishOnReconnect is set only the first call
// publishes anything.
func (p *Publisher) PubMqttDiscovery() {
	p.mu.Lock()
	if p.published && !p.settings.RepublishOnReconnect {
		p.mu.Unlock()
		log.Debug("Discovery already published, skipping on reconnect")
		return
	}
	p.published = true
	p.mu.Unlock()

	p.cycle()
}

// Republish runs a discovery cycle regardless of the reconnect policy.
func (p *Publisher) Republish() {
	p.mu.Lock()
	p.published = true
	p.mu.Unlock()

	p.cycle()
}

func (p *Publisher) cycle() {
	log.Infof("Publishing Home Assistant discovery messages for %s", p.settings.GatewayName)

	gateway := p.publishGatewayEntities()

	p.mu.Lock()
	enabled := p.enabled
	sources := append([]Source(nil), p.sources...)
	gatewaySources := append([]Source(nil), p.gateway...)
	p.mu.Unlock()

	for _, src := range gatewaySources {
		src(p)
	}

	if enabled {
		for _, src := range sources {
			src(p)
		}
	} else {
		log.Debug("Discovery is off, skipping bridged devices")
	}

	p.metrics.incCycles()
	log.Infof("Published %d gateway entity discovery messages", gateway)

	p.armAutoOff()
}

// DiscoveryEnabled reports whether bridged devices are currently published.
func (p *Publisher) DiscoveryEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// SetDiscoveryEnabled switches discovery of bridged devices on or off.
// Switching it on publishes all sources and re-arms the auto-off timer.
func (p *Publisher) SetDiscoveryEnabled(enabled bool) {
	p.mu.Lock()
	if p.enabled == enabled {
		p.mu.Unlock()
		return
	}
	p.enabled = enabled
	if !enabled && p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	sources := append([]Source(nil), p.sources...)
	callbacks := append([]func(bool){}, p.onChange...)
	p.mu.Unlock()

	log.Infof("Discovery switched %s", onOff(enabled))
	if enabled {
		for _, src := range sources {
			src(p)
		}
		p.armAutoOff()
	}
	for _, fn := range callbacks {
		fn(enabled)
	}
}

// armAutoOff (re)starts the auto-off timer. A pending timer from an earlier
// cycle is stopped first.
func (p *Publisher) armAutoOff() {
	if p.settings.AutoOffTimer <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.generation++
	gen := p.generation
	p.timer = p.afterFunc(p.settings.AutoOffTimer, func() {
		p.autoOff(gen)
	})
	log.Debugf("Discovery auto-off in %s", p.settings.AutoOffTimer)
}

func (p *Publisher) autoOff(gen uint64) {
	p.mu.Lock()
	// superseded by a later cycle
	if gen != p.generation || !p.enabled {
		p.mu.Unlock()
		return
	}
	p.enabled = false
	p.timer = nil
	callbacks := append([]func(bool){}, p.onChange...)
	p.mu.Unlock()

	log.Infof("Discovery switched off after %s", p.settings.AutoOffTimer)
	p.metrics.incAutoOff()
	for _, fn := range callbacks {
		fn(false)
	}
}

func (p *Publisher) publish(component Component, topic string, config map[string]interface{}) error {
	payload, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", topic, err)
	}
	if err := p.transport.Publish(topic, payload, true); err != nil {
		log.Errorf("Error publishing discovery message to %s: %v", topic, err)
		return err
	}
	p.metrics.incPublished(component)
	log.Debugf("Published discovery at %s", topic)
	return nil
}

func (p *Publisher) deviceBlockFor(e *EntityDescriptor) map[string]interface{} {
	if e.GatewayEntity || e.Device.MAC == "" {
		return p.gatewayBlock()
	}
	return p.remoteBlock(e.Device)
}

func (p *Publisher) gatewayBlock() map[string]interface{} {
	block := map[string]interface{}{
		"identifiers":  []string{p.settings.GatewayID()},
		"name":         p.settings.GatewayName,
		"manufacturer": p.settings.GatewayManufacturer,
	}
	if p.settings.GatewayModel != "" {
		block["model"] = p.settings.GatewayModel
	}
	if p.settings.GatewayVersion != "" {
		block["sw_version"] = p.settings.GatewayVersion
	}
	if p.settings.ConfigurationURL != "" {
		block["configuration_url"] = p.settings.ConfigurationURL
	}
	if p.settings.GatewayMAC != "" {
		block["connections"] = [][]string{{"mac", strings.ToLower(p.settings.GatewayMAC)}}
	}
	return block
}

func (p *Publisher) remoteBlock(d DeviceDescriptor) map[string]interface{} {
	block := map[string]interface{}{
		"identifiers": []string{NormalizeMAC(d.MAC)},
		"connections": [][]string{{"mac", strings.ToLower(d.MAC)}},
		"name":        p.deviceName(d),
		"via_device":  p.settings.GatewayID(),
	}
	if d.Manufacturer != "" {
		block["manufacturer"] = d.Manufacturer
	}
	if d.Model != "" {
		block["model"] = d.Model
	}
	if d.SWVersion != "" {
		block["sw_version"] = d.SWVersion
	}
	if d.ConfigurationURL != "" {
		block["configuration_url"] = d.ConfigurationURL
	}
	return block
}

// deviceName appends the tail of the MAC to the device name so that several
// devices of the same model can be told apart, unless ForceDeviceName is set.
func (p *Publisher) deviceName(d DeviceDescriptor) string {
	id := NormalizeMAC(d.MAC)
	name := d.Name
	if name == "" {
		name = d.Model
	}
	if name == "" {
		return id
	}
	if p.settings.ForceDeviceName || name == d.MAC || name == id || len(id) < 6 {
		return name
	}
	return name + "-" + id[len(id)-6:]
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
