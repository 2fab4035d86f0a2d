// Package agent wires the bridge components together and owns their
// lifecycle.
package agent

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"protube-bridge/internal/battery"
	"protube-bridge/internal/clock"
	"protube-bridge/internal/config"
	"protube-bridge/internal/core"
	"protube-bridge/internal/device"
	"protube-bridge/internal/firecontrol"
	"protube-bridge/internal/ingest"
	"protube-bridge/internal/mqtt"
	"protube-bridge/internal/scheduler"
	"protube-bridge/internal/server"
)

const (
	reloadJob  = "settings-reload"
	batteryJob = "battery-poll"

	shutdownTimeout = 2 * time.Second
)

var stateEvents = []core.EventType{
	core.ModeChangedEvent,
	core.BatteryLevelEvent,
	core.AutoFireEvent,
	core.SettingsReloadedEvent,
}

type Agent struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   *config.Options
	wg     sync.WaitGroup

	state    *core.State
	eventBus *core.EventBus
	events   core.Subscriber

	port       device.Port
	settings   *config.Store
	dispatcher *firecontrol.Dispatcher
	ingest     *ingest.Loop
	battery    *battery.Poller
	scheduler  *scheduler.Scheduler
	server     *server.Server
	mqttClient *mqtt.Client

	runMu        sync.Mutex
	shutdownOnce sync.Once
}

// New builds the agent around port. It loads the settings once and
// binds the UDP socket; a bind failure is returned as an error.
func New(opts *config.Options, port device.Port) (*Agent, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &Agent{
		ctx:       ctx,
		cancel:    cancel,
		opts:      opts,
		state:     core.NewState(),
		eventBus:  core.NewEventBus(),
		port:      device.Throttle(port, opts.ActuationRateLimit, opts.ActuationRateBurst),
		scheduler: scheduler.NewScheduler(),
	}
	// Subscribe before anything can publish so the status never misses
	// the first events.
	a.events = a.eventBus.Subscribe(stateEvents...)

	a.settings = config.NewStore(opts.SettingsFile, opts.DriverConfigFile)
	a.settings.OnReload(func(s config.Settings) {
		a.eventBus.Publish(core.Event{
			Type:    core.SettingsReloadedEvent,
			Payload: core.SettingsReloaded{Version: s.Version},
		})
	})
	if _, err := a.settings.ReloadIfChanged(); err != nil {
		log.Printf("[Agent] Using default settings: %v", err)
	}

	a.dispatcher = firecontrol.NewDispatcher(a.port, a.settings, clock.Real(), a.eventBus)

	loop, err := ingest.Listen(opts.ListenAddr, a.dispatcher, a.settings, opts.ReceiveTimeout)
	if err != nil {
		a.dispatcher.Close()
		cancel()
		return nil, err
	}
	a.ingest = loop

	a.battery = battery.NewPoller(a.port, opts.BatteryFile, a.eventBus)

	if err := a.scheduler.Every(reloadJob, opts.ReloadInterval, a.reloadSettings); err != nil {
		a.abort()
		return nil, err
	}
	if a.battery.Supported() {
		if err := a.scheduler.Every(batteryJob, opts.BatteryInterval, a.pollBattery); err != nil {
			a.abort()
			return nil, err
		}
	} else {
		log.Println("[Agent] Device has no battery query, battery monitor disabled")
	}

	if opts.Status.Addr != "" {
		a.server = server.NewServer(opts.Status.Addr, opts.Status.AllowedOrigins, a.state, a.eventBus, a.dispatcher)
	}
	a.mqttClient = mqtt.NewClient(opts.MQTT, a.eventBus, a.dispatcher, a.state)

	return a, nil
}

func (a *Agent) abort() {
	a.cancel()
	a.dispatcher.Close()
	a.ingest.Close()
}

// Addr returns the bound UDP address.
func (a *Agent) Addr() net.Addr {
	return a.ingest.Addr()
}

// Status returns the current bridge status.
func (a *Agent) Status() core.Snapshot {
	return a.state.Snapshot()
}

// Run starts the background components and blocks in the receive loop
// until Shutdown is called. Shutdown waits for Run to return. Run
// returns immediately once Shutdown has begun.
func (a *Agent) Run() error {
	a.runMu.Lock()
	if a.ctx.Err() != nil {
		a.runMu.Unlock()
		return nil
	}
	a.wg.Add(2)
	defer a.wg.Done()

	go func() {
		defer a.wg.Done()
		a.listenEvents()
	}()

	if a.battery.Supported() {
		a.scheduler.RunNow(batteryJob)
	}
	a.scheduler.Start()

	if a.server != nil {
		a.server.Start(a.ctx)
		go func() {
			if err := a.server.ListenAndServe(); err != nil {
				log.Printf("[Agent] Status server error: %v", err)
			}
		}()
	}

	if a.mqttClient != nil {
		a.mqttClient.Start(a.ctx)
		go func() {
			if err := a.mqttClient.Connect(); err != nil {
				log.Printf("[Agent] MQTT setup error: %v", err)
			}
		}()
	}

	a.runMu.Unlock()

	log.Printf("[Agent] Bridge ready (mode %s, dll mode %s)", a.dispatcher.Mode(), a.settings.Get().ModeSelect.DriverName())
	return a.ingest.Run(a.ctx)
}

func (a *Agent) listenEvents() {
	defer a.eventBus.Unsubscribe(a.events, stateEvents...)

	for {
		select {
		case <-a.ctx.Done():
			return
		case event := <-a.events:
			a.state.Apply(event)
		}
	}
}

func (a *Agent) reloadSettings() {
	if _, err := a.settings.ReloadIfChanged(); err != nil {
		log.Printf("[Settings] Error loading settings: %v", err)
	}
}

func (a *Agent) pollBattery() {
	if _, err := a.battery.Poll(); err != nil {
		log.Printf("[Battery] Failed to write status file: %v", err)
	}
}

// Shutdown stops every component and removes the files the bridge
// created. It is safe to call more than once.
func (a *Agent) Shutdown() {
	a.shutdownOnce.Do(func() {
		// A concurrent Run either finishes starting its components
		// before the cancel or sees it and returns.
		a.runMu.Lock()
		a.cancel()
		a.runMu.Unlock()

		a.dispatcher.Close()
		a.scheduler.Stop()

		if a.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := a.server.Shutdown(ctx); err != nil {
				log.Printf("[Agent] Status server shutdown: %v", err)
			}
			cancel()
		}
		if a.mqttClient != nil {
			a.mqttClient.Disconnect()
		}

		if err := a.ingest.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("[Agent] Error closing socket: %v", err)
		}
		a.wg.Wait()

		if err := a.battery.Remove(); err != nil {
			log.Printf("[Agent] Error removing battery file: %v", err)
		}
		if err := a.settings.RemoveDriverConfig(); err != nil {
			log.Printf("[Agent] Error removing driver config: %v", err)
		}
		log.Println("[Agent] Bridge stopped")
	})
}
