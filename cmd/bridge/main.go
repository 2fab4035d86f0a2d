package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"protube-bridge/internal/agent"
	"protube-bridge/internal/config"
	"protube-bridge/internal/device"
)

// These variables will be set by the build script
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	opts, showVersion, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if showVersion {
		fmt.Printf("protube-bridge %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	log.Printf("Starting ProTube bridge version: %s, commit: %s, built: %s", version, commit, date)

	port, closePort, err := openDevice(opts)
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}
	defer closePort()

	a, err := agent.New(opts, port)
	if err != nil {
		closePort()
		log.Fatalf("Failed to create bridge: %v", err)
	}

	go func() {
		if err := a.Run(); err != nil {
			log.Printf("Receive loop stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down bridge...")
	a.Shutdown()
	log.Println("Bridge shut down gracefully.")
}

// parseFlags layers command-line flags over the environment.
func parseFlags(args []string) (*config.Options, bool, error) {
	opts, err := config.LoadOptions()
	if err != nil {
		return nil, false, err
	}

	fs := pflag.NewFlagSet("protube-bridge", pflag.ContinueOnError)
	fs.StringVar(&opts.ListenAddr, "listen", opts.ListenAddr, "UDP address of the upstream driver feed")
	fs.StringVar(&opts.SettingsFile, "settings", opts.SettingsFile, "settings file written by the GUI")
	fs.StringVar(&opts.BatteryFile, "battery-file", opts.BatteryFile, "battery status file read by the GUI")
	fs.StringVar(&opts.DriverConfigFile, "driver-config", opts.DriverConfigFile, "driver config file (default under Documents)")
	fs.StringVar(&opts.DLLPath, "dll", opts.DLLPath, "path to the ForceTube DLL")
	fs.BoolVar(&opts.DryRun, "dry-run", opts.DryRun, "log actuations instead of driving the device")
	fs.DurationVar(&opts.InitDelay, "init-delay", opts.InitDelay, "wait after device initialisation")
	fs.DurationVar(&opts.ReloadInterval, "reload-interval", opts.ReloadInterval, "settings file poll interval")
	fs.DurationVar(&opts.BatteryInterval, "battery-interval", opts.BatteryInterval, "battery poll interval")
	fs.Float64Var(&opts.ActuationRateLimit, "rate-limit", opts.ActuationRateLimit, "max actuations per second, 0 disables")
	fs.IntVar(&opts.ActuationRateBurst, "rate-burst", opts.ActuationRateBurst, "actuation burst size")
	fs.StringVar(&opts.Status.Addr, "status-addr", opts.Status.Addr, "HTTP status server address, empty disables")
	fs.StringSliceVar(&opts.Status.AllowedOrigins, "allowed-origins", opts.Status.AllowedOrigins, "WebSocket origins allowed to connect")
	fs.BoolVar(&opts.MQTT.Enabled, "mqtt", opts.MQTT.Enabled, "publish status to MQTT")
	fs.StringVar(&opts.MQTT.Broker, "mqtt-broker", opts.MQTT.Broker, "MQTT broker URL")
	showVersion := fs.BoolP("version", "v", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	if err := opts.Finalize(); err != nil {
		return nil, false, err
	}
	return opts, *showVersion, nil
}

func openDevice(opts *config.Options) (device.Port, func(), error) {
	if opts.DryRun {
		log.Println("[Device] Dry run, actuations are only logged")
		return device.NewLogSink(), func() {}, nil
	}

	ft, err := device.Open(opts.DLLPath, opts.InitDelay)
	if err != nil {
		return nil, nil, err
	}
	return ft, func() {
		if err := ft.Close(); err != nil {
			log.Printf("[Device] Error closing device: %v", err)
		}
	}, nil
}
