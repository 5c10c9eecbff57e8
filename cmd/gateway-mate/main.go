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

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	healthz "github.com/klyve/go-healthz"
	"github.com/mlipscombe/gateway-mate/catalog"
	"github.com/mlipscombe/gateway-mate/config"
	"github.com/mlipscombe/gateway-mate/homeassistant"
	"github.com/mlipscombe/gateway-mate/monitor"
	"github.com/mlipscombe/gateway-mate/mqtt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var version = "dev"

// determineBaseTopic extracts the gateway base topic from the URL path, or
// generates one from the gateway name
func determineBaseTopic(mqttURL *url.URL, gatewayName string) string {
	if len(mqttURL.Path) > 1 {
		return strings.TrimSuffix(mqttURL.Path[1:], "/")
	}
	return fmt.Sprintf("home/%s", gatewayName)
}

// clientID derives a stable MQTT client id from the gateway MAC
func clientID(gatewayMAC string) string {
	mac := strings.ToLower(homeassistant.NormalizeMAC(gatewayMAC))
	if mac == "" {
		return fmt.Sprintf("gateway-mate-%d", os.Getpid())
	}
	return fmt.Sprintf("gateway-mate-%s", mac)
}

func buildSettings(cfg *config.Config, baseTopic string) homeassistant.Settings {
	settings := homeassistant.DefaultSettings()
	settings.DiscoveryPrefix = cfg.DiscoveryPrefix
	settings.RepublishOnReconnect = cfg.DiscoveryRepublish
	settings.AutoOffTimer = cfg.DiscoveryAutoOff
	settings.ForceDeviceName = cfg.ForceDeviceName
	settings.GatewayName = cfg.GatewayName
	settings.GatewayMAC = cfg.GatewayMAC
	settings.GatewayManufacturer = cfg.GatewayManufacturer
	settings.GatewayVersion = version
	settings.BaseTopic = baseTopic
	settings.ListStateTopic = baseTopic + "/BTtoMQTT"
	if cfg.Bind != "false" {
		settings.ConfigurationURL = configurationURL(cfg.Bind)
	}
	return settings
}

// configurationURL points Home Assistant at the health endpoint, unless the
// server listens on every interface and there is no single address to link.
func configurationURL(bind string) string {
	if bind == "" || strings.HasPrefix(bind, "0.0.0.0:") || strings.HasPrefix(bind, ":") {
		return ""
	}
	return fmt.Sprintf("http://%s/healthz", bind)
}

func main() {
	cfg := config.Load()
	cfg.SetupLogging()

	if cfg.Bind != "false" {
		go func(listenAddress string) {
			log.Infof("Starting metrics server on %s", listenAddress)
			instance := healthz.Instance{
				Logger:   log.New(),
				Detailed: true,
			}

			http.Handle("/metrics", promhttp.Handler())
			http.Handle("/healthz", instance.Healthz())
			http.Handle("/liveness", instance.Liveness())

			if err := http.ListenAndServe(listenAddress, nil); err != nil {
				log.Errorf("HTTP server error: %v", err)
			}
		}(cfg.Bind)
	}

	mqttURL, err := url.Parse(cfg.MQTTURL)
	if err != nil {
		log.Fatalf("Invalid MQTT URL: %s", cfg.MQTTURL)
	}

	if cfg.GatewayMAC == "" {
		log.Warnf("No gateway MAC configured or detected, identifying the gateway by its name %q", cfg.GatewayName)
	}

	baseTopic := determineBaseTopic(mqttURL, cfg.GatewayName)
	settings := buildSettings(cfg, baseTopic)

	mqttClient := mqtt.NewClient(mqttURL, clientID(settings.GatewayMAC), baseTopic)
	publisher := homeassistant.NewPublisher(settings, mqttClient, homeassistant.NewMetrics(prometheus.DefaultRegisterer))

	if cfg.DevicesFile != "" {
		devices, err := catalog.Load(cfg.DevicesFile)
		if err != nil {
			log.Fatalf("Failed to load device catalog: %v", err)
		}
		log.Infof("Loaded %d devices and %d triggers from %s", len(devices.Devices), len(devices.Triggers), cfg.DevicesFile)
		devices.Register(publisher)
	}

	commandTopic := strings.TrimPrefix(homeassistant.SystemCommandTopic, "/")
	if err := mqttClient.Subscribe(commandTopic, 1, func(_ *mqtt.Client, msg mqtt.Message) {
		if err := publisher.HandleCommand(msg.Payload()); err != nil {
			log.Errorf("Failed to handle command on %s: %v", msg.Topic(), err)
		}
	}); err != nil {
		log.Errorf("Failed to subscribe to command topic: %v", err)
	}

	if cfg.HADiscovery {
		mqttClient.OnConnect(publisher.PubMqttDiscovery)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mqttClient.Connect(); err != nil {
		log.Fatalf("Failed to connect to MQTT broker %s: %v", mqttURL.Host, err)
	}
	log.Infof("Connected to MQTT broker %s (publishing on \"%s\")", mqttURL.Host, baseTopic)

	sysMonitor := monitor.StartSystemMonitor(ctx, mqttClient, publisher, monitor.Config{
		Topic:    settings.ResolveTopic(homeassistant.SystemStateTopic),
		Gateway:  settings.GatewayName,
		Version:  version,
		Interval: cfg.StatusInterval,
	})
	publisher.OnDiscoveryChange(func(bool) {
		sysMonitor.Trigger()
	})

	<-ctx.Done()
	log.Info("Shutting down")
	mqttClient.Disconnect()
}
