package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// StatusOptions configures the optional websocket status server.
type StatusOptions struct {
	Addr           string   `env:"ADDR"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// MQTTOptions configures the optional MQTT status bridge.
type MQTTOptions struct {
	Enabled            bool   `env:"ENABLED"`
	Broker             string `env:"BROKER" envDefault:"tcp://localhost:1883"` // tcp://IP:PORT
	Username           string `env:"USERNAME"`
	Password           string `env:"PASSWORD"`
	ClientID           string `env:"CLIENT_ID" envDefault:"protube-bridge"`
	TopicPrefix        string `env:"TOPIC_PREFIX" envDefault:"protube"`
	HADiscoveryEnabled bool   `env:"HA_DISCOVERY_ENABLED"`
	HADiscoveryPrefix  string `env:"HA_DISCOVERY_PREFIX" envDefault:"homeassistant"`
}

// Options holds the process-level settings of the bridge. Unlike
// Settings they are read once at startup.
type Options struct {
	ListenAddr       string `env:"PROTUBE_LISTEN_ADDR" envDefault:"127.0.0.1:5015"`
	SettingsFile     string `env:"PROTUBE_SETTINGS_FILE" envDefault:"protube_gui_config.json"`
	BatteryFile      string `env:"PROTUBE_BATTERY_FILE" envDefault:"protube_battery.txt"`
	DriverConfigFile string `env:"PROTUBE_DRIVER_CONFIG_FILE"`

	DLLPath   string        `env:"PROTUBE_DLL" envDefault:"./ForceTubeVR_API_x64.dll"`
	DryRun    bool          `env:"PROTUBE_DRY_RUN"`
	InitDelay time.Duration `env:"PROTUBE_INIT_DELAY" envDefault:"3s"`

	ReloadInterval  time.Duration `env:"PROTUBE_RELOAD_INTERVAL" envDefault:"1s"`
	BatteryInterval time.Duration `env:"PROTUBE_BATTERY_INTERVAL" envDefault:"10s"`
	ReceiveTimeout  time.Duration `env:"PROTUBE_RECEIVE_TIMEOUT" envDefault:"500ms"`

	ActuationRateLimit float64 `env:"PROTUBE_ACTUATION_RATE_LIMIT" envDefault:"200"`
	ActuationRateBurst int     `env:"PROTUBE_ACTUATION_RATE_BURST" envDefault:"20"`

	Status StatusOptions `envPrefix:"PROTUBE_STATUS_"`
	MQTT   MQTTOptions   `envPrefix:"PROTUBE_MQTT_"`
}

// driverConfigDir is where the upstream driver DLL looks for its config.
const driverConfigDir = "ProTube OpenXR Companion"

// LoadOptions reads Options from the environment and applies defaults.
// Command-line flags are layered on top by the caller, which must then
// call Finalize.
func LoadOptions() (*Options, error) {
	opts := &Options{}
	if err := env.Parse(opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return opts, nil
}

// Finalize sanitizes the options, fills remaining defaults and
// validates them.
func (o *Options) Finalize() error {
	o.sanitize()
	o.setDefaults()
	return o.validate()
}

func (o *Options) sanitize() {
	o.ListenAddr = strings.TrimSpace(o.ListenAddr)
	o.SettingsFile = strings.TrimSpace(o.SettingsFile)
	o.BatteryFile = strings.TrimSpace(o.BatteryFile)
	o.DriverConfigFile = strings.TrimSpace(o.DriverConfigFile)
	o.Status.Addr = strings.TrimSpace(o.Status.Addr)
	o.MQTT.TopicPrefix = strings.TrimSuffix(strings.TrimSpace(o.MQTT.TopicPrefix), "/")
}

func (o *Options) setDefaults() {
	if o.ListenAddr == "" {
		o.ListenAddr = "127.0.0.1:5015"
	}
	if o.SettingsFile == "" {
		o.SettingsFile = "protube_gui_config.json"
	}
	if o.BatteryFile == "" {
		o.BatteryFile = "protube_battery.txt"
	}
	if o.DriverConfigFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			o.DriverConfigFile = filepath.Join(home, "Documents", driverConfigDir, "protube_config.txt")
		}
	}
	if o.ReloadInterval <= 0 {
		o.ReloadInterval = time.Second
	}
	if o.BatteryInterval <= 0 {
		o.BatteryInterval = 10 * time.Second
	}
	if o.ReceiveTimeout <= 0 {
		o.ReceiveTimeout = 500 * time.Millisecond
	}
	if o.ActuationRateBurst <= 0 {
		o.ActuationRateBurst = 20
	}
	if len(o.Status.AllowedOrigins) == 0 && o.Status.Addr != "" {
		o.Status.AllowedOrigins = []string{"http://" + o.Status.Addr}
	}
	if o.MQTT.ClientID == "" {
		o.MQTT.ClientID = "protube-bridge"
	}
	if o.MQTT.TopicPrefix == "" {
		o.MQTT.TopicPrefix = "protube"
	}
	if o.MQTT.HADiscoveryPrefix == "" {
		o.MQTT.HADiscoveryPrefix = "homeassistant"
	}
}

func (o *Options) validate() error {
	if o.ActuationRateLimit < 0 {
		return fmt.Errorf("config error: actuation rate limit must not be negative")
	}
	if o.MQTT.Enabled && o.MQTT.Broker == "" {
		return fmt.Errorf("config error: mqtt enabled without a broker")
	}
	return nil
}
