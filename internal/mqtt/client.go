// Package mqtt mirrors the bridge status to an MQTT broker and accepts
// fire-mode changes from it.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"protube-bridge/internal/config"
	"protube-bridge/internal/core"
)

// ModeSetter accepts fire-mode change requests by name.
type ModeSetter interface {
	HandleModeChange(name string) bool
}

// StatusSource provides the current bridge status.
type StatusSource interface {
	Snapshot() core.Snapshot
}

var busEvents = []core.EventType{core.ModeChangedEvent, core.BatteryLevelEvent, core.AutoFireEvent}

type Client struct {
	client mqtt.Client
	opts   config.MQTTOptions
	bus    *core.EventBus
	modes  ModeSetter
	status StatusSource
	prefix string
}

// NewClient creates the client, or returns nil when MQTT is disabled.
func NewClient(opts config.MQTTOptions, bus *core.EventBus, modes ModeSetter, status StatusSource) *Client {
	if !opts.Enabled {
		return nil
	}

	c := newClient(opts, bus, modes, status)

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetUsername(opts.Username)
	clientOpts.SetPassword(opts.Password)

	clientOpts.SetKeepAlive(10 * time.Second)
	clientOpts.SetPingTimeout(5 * time.Second)

	clientOpts.SetAutoReconnect(true)
	clientOpts.SetMaxReconnectInterval(1 * time.Minute)

	// Keep retrying at startup so a broker that comes up later is picked up.
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectRetryInterval(5 * time.Second)

	clientOpts.SetOrderMatters(false)
	clientOpts.SetWill(c.topic("availability"), "offline", 1, true)

	clientOpts.SetOnConnectHandler(c.onConnect)
	clientOpts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v. Retrying in background...", err)
	})
	clientOpts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		log.Println("[MQTT] Attempting to reconnect...")
	})

	c.client = mqtt.NewClient(clientOpts)
	return c
}

func newClient(opts config.MQTTOptions, bus *core.EventBus, modes ModeSetter, status StatusSource) *Client {
	return &Client{
		opts:   opts,
		bus:    bus,
		modes:  modes,
		status: status,
		prefix: strings.TrimSuffix(opts.TopicPrefix, "/"),
	}
}

// Connect starts the connection loop and waits for the first attempt.
func (c *Client) Connect() error {
	if c.client == nil {
		return nil
	}
	log.Printf("[MQTT] Starting connection loop to %s...", c.opts.Broker)

	token := c.client.Connect()
	// With ConnectRetry set, an error here means bad configuration
	// rather than an unreachable broker.
	if token.Wait() && token.Error() != nil {
		log.Printf("[MQTT] Initial connection error: %v", token.Error())
		return token.Error()
	}
	return nil
}

// Start publishes bus events as retained state until ctx is cancelled.
func (c *Client) Start(ctx context.Context) {
	if c.bus == nil {
		return
	}
	sub := c.bus.Subscribe(busEvents...)
	go func() {
		defer c.bus.Unsubscribe(sub, busEvents...)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-sub:
				c.publishEvent(event)
			}
		}
	}()
}

// Disconnect publishes offline and closes the connection.
func (c *Client) Disconnect() {
	if c.client == nil || !c.client.IsConnected() {
		return
	}
	log.Println("[MQTT] Disconnecting...")

	token := c.client.Publish(c.topic("availability"), 0, true, "offline")
	if token.WaitTimeout(2 * time.Second) {
		if token.Error() != nil {
			log.Printf("[MQTT] Warning: failed to publish offline status: %v", token.Error())
		}
	} else {
		log.Println("[MQTT] Warning: timed out publishing offline status")
	}

	c.client.Disconnect(250)
	log.Println("[MQTT] Disconnected")
}

func (c *Client) Publish(subtopic string, payload interface{}, retained bool) {
	if c.client == nil || !c.client.IsConnected() {
		return
	}

	topic := c.topic(subtopic)
	token := c.client.Publish(topic, 0, retained, fmt.Sprintf("%v", payload))

	go func() {
		if token.WaitTimeout(5 * time.Second) {
			if token.Error() != nil {
				log.Printf("[MQTT] Publish error to %s: %v", topic, token.Error())
			}
		} else {
			log.Printf("[MQTT] Timeout publishing to %s", topic)
		}
	}()
}

func (c *Client) topic(subtopic string) string {
	return c.prefix + "/" + subtopic
}

func (c *Client) publishEvent(event core.Event) {
	switch p := event.Payload.(type) {
	case core.ModeChanged:
		c.Publish("mode/state", p.Mode.Name(), true)
	case core.BatteryLevel:
		c.Publish("battery/state", p.Percent, true)
	case core.AutoFireChanged:
		c.Publish("autofire/"+p.Hand.String()+"/state", onOff(p.Active), true)
	}
}

func (c *Client) publishSnapshot() {
	if c.status == nil {
		return
	}
	snap := c.status.Snapshot()
	c.Publish("mode/state", snap.Mode, true)
	if snap.BatteryPercent >= 0 {
		c.Publish("battery/state", snap.BatteryPercent, true)
	}
	c.Publish("autofire/left/state", onOff(snap.AutoFireLeft), true)
	c.Publish("autofire/right/state", onOff(snap.AutoFireRight), true)
}

// onConnect runs on a paho goroutine after every (re)connect.
func (c *Client) onConnect(client mqtt.Client) {
	log.Println("[MQTT] Connected to broker")

	topic := c.topic("mode/set")
	if token := client.Subscribe(topic, 1, c.handleModeSet); token.Wait() && token.Error() != nil {
		log.Printf("[MQTT] Error subscribing to %s: %v", topic, token.Error())
	} else {
		log.Printf("[MQTT] Subscribed to %s", topic)
	}

	go func() {
		c.Publish("availability", "online", true)
		c.publishSnapshot()
		if c.opts.HADiscoveryEnabled {
			// Let the subscription settle before Home Assistant starts sending.
			time.Sleep(1 * time.Second)
			c.PublishHADiscovery()
		}
	}()
}

func (c *Client) handleModeSet(client mqtt.Client, msg mqtt.Message) {
	name := strings.TrimSpace(string(msg.Payload()))
	if c.modes == nil || !c.modes.HandleModeChange(name) {
		log.Printf("[MQTT] Rejected mode %q", name)
	}
}

type discoveryMessage struct {
	topic   string
	payload map[string]interface{}
}

func (c *Client) safeID() string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		if r == ' ' {
			return '_'
		}
		return -1
	}, c.opts.ClientID)
}

func (c *Client) discoveryMessages() []discoveryMessage {
	id := c.safeID()
	availability := []map[string]string{{
		"topic":                 c.topic("availability"),
		"payload_available":     "online",
		"payload_not_available": "offline",
	}}
	device := map[string]interface{}{
		"identifiers":  []string{id},
		"name":         "ProTube Bridge",
		"manufacturer": "ProTubeVR",
		"model":        "ForceTube Fire Control",
	}

	modes := make([]string, 0, 4)
	for _, m := range []core.FireMode{core.SingleShot, core.BurstFire, core.FullAuto, core.HapticExperimental} {
		modes = append(modes, m.Name())
	}

	prefix := c.opts.HADiscoveryPrefix
	return []discoveryMessage{
		{
			topic: fmt.Sprintf("%s/select/%s/fire_mode/config", prefix, id),
			payload: map[string]interface{}{
				"name":          "Fire Mode",
				"unique_id":     id + "_fire_mode",
				"icon":          "mdi:pistol",
				"command_topic": c.topic("mode/set"),
				"state_topic":   c.topic("mode/state"),
				"options":       modes,
				"availability":  availability,
				"device":        device,
			},
		},
		{
			topic: fmt.Sprintf("%s/sensor/%s/battery/config", prefix, id),
			payload: map[string]interface{}{
				"name":                "Battery",
				"unique_id":           id + "_battery",
				"device_class":        "battery",
				"unit_of_measurement": "%",
				"state_class":         "measurement",
				"state_topic":         c.topic("battery/state"),
				"availability":        availability,
				"device":              device,
			},
		},
	}
}

// PublishHADiscovery sends the Home Assistant discovery configs.
func (c *Client) PublishHADiscovery() {
	for _, m := range c.discoveryMessages() {
		data, err := json.Marshal(m.payload)
		if err != nil {
			log.Printf("[MQTT] Error encoding discovery for %s: %v", m.topic, err)
			continue
		}
		c.client.Publish(m.topic, 0, true, data)
		log.Printf("[MQTT] HA Discovery sent to %s", m.topic)
	}
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
