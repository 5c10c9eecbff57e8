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

// Component is the Home Assistant integration platform an entity is
// published under. It forms the second level of the discovery topic.
type Component string

const (
	Sensor           Component = "sensor"
	BinarySensor     Component = "binary_sensor"
	Button           Component = "button"
	Switch           Component = "switch"
	Number           Component = "number"
	Select           Component = "select"
	Update           Component = "update"
	DeviceAutomation Component = "device_automation"
)

// State classes understood by Home Assistant sensors.
const (
	StateClassNone            = ""
	StateClassMeasurement     = "measurement"
	StateClassTotal           = "total"
	StateClassTotalIncreasing = "total_increasing"
)

// Entity categories.
const (
	CategoryConfig     = "config"
	CategoryDiagnostic = "diagnostic"
)

// deviceClasses mirrors homeassistant/const.py at the revision the gateway
// was tested against.
var deviceClasses = newSet(
	"battery_charging",
	"battery",
	"carbon_dioxide",
	"carbon_monoxide",
	"connectivity",
	"current",
	"data_size",
	"distance",
	"door",
	"duration",
	"energy",
	"enum",
	"gas",
	"humidity",
	"illuminance",
	"irradiance",
	"lock",
	"motion",
	"moving",
	"pm1",
	"pm10",
	"pm25",
	"power_factor",
	"power",
	"precipitation_intensity",
	"precipitation",
	"pressure",
	"problem",
	"restart",
	"signal_strength",
	"sound_pressure",
	"temperature",
	"timestamp",
	"update",
	"voltage",
	"water",
	"weight",
	"wind_speed",
	"window",
)

var units = newSet(
	"W",
	"kW",
	"V",
	"kWh",
	"A",
	"°C",
	"°F",
	"ms",
	"s",
	"min",
	"hPa",
	"L",
	"kg",
	"lb",
	"µS/cm",
	"ppm",
	"μg/m³",
	"m³",
	"mg/m³",
	"m/s²",
	"mV",
	"lx",
	"Ω",
	"%",
	"bar",
	"bpm",
	"dB",
	"dBm",
	"B",
	"UV index",
	"m/s",
	"km/h",
	"°",
	"mm",
	"mm/h",
	"cm",
)

type stringSet map[string]struct{}

func newSet(values ...string) stringSet {
	s := make(stringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s stringSet) has(v string) bool {
	_, ok := s[v]
	return ok
}

// ValidDeviceClass reports whether class is a device class Home Assistant
// knows about. The empty string is valid and means "no class".
func ValidDeviceClass(class string) bool {
	return class == "" || deviceClasses.has(class)
}

// ValidUnit reports whether unit is a known unit of measurement. The empty
// string is valid and means "unitless".
func ValidUnit(unit string) bool {
	return unit == "" || units.has(unit)
}
