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

import "strings"

// ValueTemplates maps the semantic name of a decoded field to the Jinja
// template Home Assistant uses to extract it from a JSON state message.
// Entity descriptors may use either the name or a literal template.
var ValueTemplates = map[string]string{
	"batt":         "{{ value_json.batt | is_defined }}",
	"lux":          "{{ value_json.lux | is_defined }}",
	"pres":         "{{ value_json.pres | is_defined }}",
	"fer":          "{{ value_json.fer | is_defined }}",
	"for":          "{{ value_json.for | is_defined }}",
	"moi":          "{{ value_json.moi | is_defined }}",
	"hum":          "{{ value_json.hum | is_defined }}",
	"steps":        "{{ value_json.steps | is_defined }}",
	"weight":       "{{ value_json.weight | is_defined }}",
	"presence":     "{{ value_json.presence | is_defined }}",
	"altim":        "{{ value_json.altim | is_defined }}",
	"altift":       "{{ value_json.altift | is_defined }}",
	"tempc":        "{{ value_json.tempc | is_defined }}",
	"tempc2":       "{{ value_json.tempc2 | is_defined }}",
	"tempc3":       "{{ value_json.tempc3 | is_defined }}",
	"tempc4":       "{{ value_json.tempc4 | is_defined }}",
	"tempf":        "{{ value_json.tempf | is_defined }}",
	"message":      "{{ value_json.message | is_defined }}",
	"value":        "{{ value_json.value | is_defined }}",
	"volt":         "{{ value_json.volt | is_defined }}",
	"current":      "{{ value_json.current | is_defined }}",
	"power":        "{{ value_json.power | is_defined }}",
	"energy":       "{{ value_json.energy | is_defined }}",
	"gpio":         "{{ value_json.gpio | is_defined }}",
	"ftcd":         "{{ value_json.ftcd | is_defined }}",
	"wattsm2":      "{{ value_json.wattsm2 | is_defined }}",
	"adc":          "{{ value_json.adc | is_defined }}",
	"pa":           "{{ float(value_json.pa) * 0.01 | is_defined }}",
	"id":           "{{ value_json.id | is_defined }}",
	"address":      "{{ value_json.address | is_defined }}",
	"open":         "{{ value_json.open | is_defined }}",
	"time":         "{{ value_json.time | is_defined }}",
	"count":        "{{ value_json.count | is_defined }}",
	"alarm":        "{{ value_json.alarm | is_defined }}",
	"inuse":        "{{ value_json.power | is_defined | float > 0 }}",
	"inuse_rn8209": "{% if value_json.power > 0.02 -%} on {% else %} off {%- endif %}",
	"volt_bm2":     "{% if value_json.uuid is not defined and value_json.volt is defined -%} {{value_json.volt}} {%- endif %}",
}

// ResolveTemplate returns the template registered under name, or name itself
// when it is already a template or is not a known field.
func ResolveTemplate(name string) string {
	if name == "" || strings.Contains(name, "{") {
		return name
	}
	if tmpl, ok := ValueTemplates[name]; ok {
		return tmpl
	}
	return name
}
