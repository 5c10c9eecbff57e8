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

package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	// LWTTopic is the availability topic, relative to the client prefix.
	LWTTopic   = "LWT"
	Online     = "online"
	Offline    = "offline"
	defaultQoS = 0
)

type Client struct {
	URI           *url.URL
	ClientID      string
	Prefix        string
	connection    mqtt.Client
	subscriptions map[string]subscriptionInfo
	subMutex      sync.RWMutex
	onConnect     []func()
}

type subscriptionInfo struct {
	qos      byte
	callback MessageHandler
}

type Message mqtt.Message

type MessageHandler func(client *Client, message Message)

// NewClient prepares a client. Register OnConnect hooks, then call Connect.
func NewClient(uri *url.URL, clientID string, prefix string) *Client {
	return &Client{
		URI:           uri,
		ClientID:      clientID,
		Prefix:        prefix,
		subscriptions: make(map[string]subscriptionInfo),
	}
}

// OnConnect registers fn to run after every (re)connection, once the online
// message has been sent and subscriptions restored. Must be called before
// Connect.
func (client *Client) OnConnect(fn func()) {
	client.onConnect = append(client.onConnect, fn)
}

func (client *Client) Connect() error {
	opts := createClientOptions(client)

	client.connection = mqtt.NewClient(opts)
	token := client.connection.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	return nil
}

// Disconnect marks the gateway offline and closes the connection.
func (client *Client) Disconnect() {
	if client.connection == nil || !client.connection.IsConnected() {
		return
	}
	token := client.connection.Publish(client.AvailabilityTopic(), 1, true, Offline)
	token.WaitTimeout(time.Second)
	client.connection.Disconnect(250)
}

// AvailabilityTopic is the topic carrying the online/offline state.
func (client *Client) AvailabilityTopic() string {
	return fmt.Sprintf("%s/%s", client.Prefix, LWTTopic)
}

// Publish sends payload without waiting for the broker. Delivery errors are
// logged.
func (client *Client) Publish(topic string, payload []byte, retain bool) error {
	if client.connection == nil {
		return fmt.Errorf("publishing %s: not connected", topic)
	}
	token := client.connection.Publish(topic, defaultQoS, retain, payload)
	go func() {
		<-token.Done()
		if token.Error() != nil {
			log.Errorf("publishing %s: %v", topic, token.Error())
		}
	}()

	return nil
}

// PublishJSON publishes val as a retained JSON document.
func (client *Client) PublishJSON(topic string, val interface{}) error {
	jsonVal, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshalling %s: %v", topic, val)
	}
	return client.Publish(topic, jsonVal, true)
}

func (client *Client) Subscribe(topic string, qos byte, callback MessageHandler) error {
	full_topic := fmt.Sprintf("%s/%s", client.Prefix, topic)

	// Store subscription info for automatic re-subscription on reconnect
	client.subMutex.Lock()
	client.subscriptions[full_topic] = subscriptionInfo{
		qos:      qos,
		callback: callback,
	}
	client.subMutex.Unlock()

	if client.connection == nil {
		return nil
	}

	token := client.connection.Subscribe(full_topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		callback(client, msg)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	return nil
}

func (client *Client) handleConnect() {
	log.Info("mqtt connected")

	// Republish online status on every connection
	client.connection.Publish(client.AvailabilityTopic(), 1, true, Online)

	client.resubscribe()

	for _, fn := range client.onConnect {
		fn()
	}
}

// resubscribe restores all subscriptions after reconnection
func (client *Client) resubscribe() {
	client.subMutex.RLock()
	defer client.subMutex.RUnlock()

	for fullTopic, sub := range client.subscriptions {
		// Capture loop variable for closure
		subInfo := sub
		token := client.connection.Subscribe(fullTopic, subInfo.qos, func(_ mqtt.Client, msg mqtt.Message) {
			subInfo.callback(client, msg)
		})
		token.Wait()
		if err := token.Error(); err != nil {
			log.Errorf("failed to resubscribe to %s: %v", fullTopic, err)
		} else {
			log.Infof("resubscribed to %s", fullTopic)
		}
	}
}

func createClientOptions(client *Client) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()

	port := client.URI.Port()
	if port == "" {
		if client.URI.Scheme == "mqtts" {
			port = "8883"
		} else {
			port = "1883"
		}
	}

	if client.URI.Scheme == "mqtts" {
		query := client.URI.Query()
		tlsCert := query.Get("tls_cert")
		tlsKey := query.Get("tls_key")
		caCert := query.Get("tls_cacert")
		insecure := query.Get("insecure")

		tlsConfig := &tls.Config{}

		if insecure == "true" {
			tlsConfig.InsecureSkipVerify = true
		}

		if tlsCert != "" && tlsKey != "" {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				log.Fatalf("failed to load tls cert and key: %v", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}

		if caCert != "" {
			caCertPool := x509.NewCertPool()
			caCertData, err := os.ReadFile(caCert)
			if err != nil {
				log.Fatalf("failed to read ca cert: %v", err)
			}
			caCertPool.AppendCertsFromPEM(caCertData)
			tlsConfig.RootCAs = caCertPool
		}

		opts.SetTLSConfig(tlsConfig)
		opts.AddBroker(fmt.Sprintf("ssl://%s:%s", client.URI.Hostname(), port))
	} else {
		opts.AddBroker(fmt.Sprintf("tcp://%s:%s", client.URI.Hostname(), port))
	}

	opts.SetUsername(client.URI.User.Username())
	password, _ := client.URI.User.Password()
	opts.SetPassword(password)
	opts.SetClientID(client.ClientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetWill(client.AvailabilityTopic(), Offline, 1, true)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Errorf("mqtt connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		log.Warn("mqtt reconnecting")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		client.handleConnect()
	})

	return opts
}
