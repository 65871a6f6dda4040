// Command lm-micra drives an espresso machine's brew relay from the
// paddle, front-panel buttons and an optional bluetooth scale, publishing
// brew events to MQTT and serving a LAN status page.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/george-ags/lm-micra/internal/brew"
	"github.com/george-ags/lm-micra/internal/control"
	"github.com/george-ags/lm-micra/internal/gpio"
	"github.com/george-ags/lm-micra/internal/input"
	"github.com/george-ags/lm-micra/internal/mqtt"
	"github.com/george-ags/lm-micra/internal/scale"
	"github.com/george-ags/lm-micra/internal/status"
	"github.com/george-ags/lm-micra/internal/store"
	"github.com/george-ags/lm-micra/internal/web"
)

const defaultEnvFile = "/etc/lm-micra.env"

type options struct {
	broker       string
	httpAddr     string
	savePath     string
	chipName     string
	pinRelay     int
	pinPaddle    int
	pinTare      int
	pinMemory    int
	pinInc       int
	pinDec       int
	pinSwitch    int
	buttonPoll   time.Duration
	controlPoll  time.Duration
	watchdogPoll time.Duration
	debounce     time.Duration
	holdTime     time.Duration
	flowPoints   int
	scanTimeout  time.Duration
	noBLE        bool
	printState   bool
}

// envFlags maps flag names to the environment variables that can supply
// their values. Explicit command-line flags always win.
var envFlags = map[string]string{
	"broker": "MICRA_BROKER",
	"http":   "MICRA_HTTP",
	"save":   "MICRA_SAVE",
	"chip":   "MICRA_CHIP",
}

func main() {
	envFile := flag.String("env", defaultEnvFile, "env file with MICRA_* defaults (ignored when absent)")
	var opts options
	flag.StringVar(&opts.broker, "broker", "", "MQTT broker address, e.g. tcp://192.168.1.200:1883 (empty disables telemetry)")
	flag.StringVar(&opts.httpAddr, "http", ":8090", "HTTP status address (empty to disable)")
	flag.StringVar(&opts.savePath, "save", store.DefaultPath, "memory save file")
	flag.StringVar(&opts.chipName, "chip", "gpiochip0", "GPIO character device")
	flag.IntVar(&opts.pinRelay, "pin-relay", gpio.DefaultPinRelay, "BCM pin number for the brew relay")
	flag.IntVar(&opts.pinPaddle, "pin-paddle", gpio.DefaultPinPaddle, "BCM pin number for the brew paddle")
	flag.IntVar(&opts.pinTare, "pin-tare", gpio.DefaultPinTare, "BCM pin number for the tare button")
	flag.IntVar(&opts.pinMemory, "pin-memory", gpio.DefaultPinMemory, "BCM pin number for the memory button")
	flag.IntVar(&opts.pinInc, "pin-inc", gpio.DefaultPinTargetInc, "BCM pin number for the target up button")
	flag.IntVar(&opts.pinDec, "pin-dec", gpio.DefaultPinTargetDec, "BCM pin number for the target down button")
	flag.IntVar(&opts.pinSwitch, "pin-switch", gpio.DefaultPinScaleSwitch, "BCM pin number for the scale connect switch")
	flag.DurationVar(&opts.buttonPoll, "button-poll", 10*time.Millisecond, "input polling interval")
	flag.DurationVar(&opts.controlPoll, "control-poll", 250*time.Millisecond, "status and scale reconcile interval")
	flag.DurationVar(&opts.watchdogPoll, "watchdog-poll", control.DefaultWatchdogPoll, "paddle watchdog polling interval")
	flag.DurationVar(&opts.debounce, "debounce", 20*time.Millisecond, "button debounce duration")
	flag.DurationVar(&opts.holdTime, "hold", 500*time.Millisecond, "button hold threshold")
	flag.IntVar(&opts.flowPoints, "flow-points", brew.DefaultFlowCapacity, "flow-rate history length")
	flag.DurationVar(&opts.scanTimeout, "scan-timeout", control.DefaultScanTimeout, "bluetooth scan budget per attempt")
	flag.BoolVar(&opts.noBLE, "no-ble", false, "run without bluetooth (no scale)")
	flag.BoolVar(&opts.printState, "print-state", false, "Print current pin state and exit")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("env file %s: %v", *envFile, err)
	}
	applyEnv()

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyEnv fills in flags the command line left untouched from the
// environment (after the env file has been loaded into it).
func applyEnv() {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for name, key := range envFlags {
		if set[name] {
			continue
		}
		if v := os.Getenv(key); v != "" {
			flag.Set(name, v)
		}
	}
}

func run(opts options) error {
	chip, err := gpio.OpenChip(opts.chipName)
	if err != nil {
		return fmt.Errorf("open gpio chip: %w", err)
	}
	defer chip.Close()

	relay, err := chip.Output(opts.pinRelay)
	if err != nil {
		return fmt.Errorf("relay line (pin %d): %w", opts.pinRelay, err)
	}
	defer relay.Close()

	var lineErr error
	openInput := func(name string, pin int) gpio.Input {
		if lineErr != nil {
			return nil
		}
		line, err := chip.Input(pin)
		if err != nil {
			lineErr = fmt.Errorf("%s line (pin %d): %w", name, pin, err)
			return nil
		}
		return line
	}
	paddle := openInput("paddle", opts.pinPaddle)
	tareBtn := openInput("tare", opts.pinTare)
	memBtn := openInput("memory", opts.pinMemory)
	incBtn := openInput("target-up", opts.pinInc)
	decBtn := openInput("target-down", opts.pinDec)
	swLine := openInput("scale-switch", opts.pinSwitch)
	if lineErr != nil {
		return lineErr
	}
	for _, line := range []gpio.Input{paddle, tareBtn, memBtn, incBtn, decBtn, swLine} {
		defer line.Close()
	}

	// Print state mode
	if opts.printState {
		printPins(relay, []namedInput{
			{"paddle", paddle},
			{"tare", tareBtn},
			{"memory", memBtn},
			{"target-up", incBtn},
			{"target-down", decBtn},
			{"scale-switch", swLine},
		})
		return nil
	}

	st := store.NewFileStore(opts.savePath)

	var pub mqtt.Publisher
	if opts.broker != "" {
		clientID := "lm-micra"
		if host, err := os.Hostname(); err == nil && host != "" {
			clientID += "-" + host
		}
		real, err := mqtt.NewRealPublisher(opts.broker, clientID)
		if err != nil {
			log.Printf("mqtt: %v (continuing without telemetry)", err)
		} else {
			pub = real
			defer real.Close()
		}
	}

	var (
		scanner scale.Scanner
		dev     scale.Device
	)
	if !opts.noBLE {
		sc, err := scale.NewBLEScanner()
		if err != nil {
			log.Printf("bluetooth: %v (running without scale)", err)
		} else if d, err := scale.NewBLEDevice(); err != nil {
			log.Printf("bluetooth: %v (running without scale)", err)
		} else {
			scanner, dev = sc, d
		}
	}

	events := make(chan brew.Event, 16)
	notify := func(ev brew.Event) {
		select {
		case events <- ev:
		default:
			// Telemetry must never block brewing.
		}
	}

	mgr := control.New(control.Config{
		FlowCapacity: opts.flowPoints,
		WatchdogPoll: opts.watchdogPoll,
		ScanTimeout:  opts.scanTimeout,
	}, relay, paddle, scanner, st, notify)
	if t, ok := dev.(scale.Tarer); ok {
		mgr.SetTareHandler(t)
	}

	// Tracker before STARTUP so the snapshot is available for the payload.
	tracker := status.NewTracker(time.Now(), opts.broker, opts.savePath)
	tracker.Update(mgr.Status())

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker, mgr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	publishSystem(pub, tracker, mqtt.SystemStartup)

	buttons := &buttonSet{
		paddle: watched{"paddle", paddle, input.NewButton(input.Config{})},
		tare:   watched{"tare", tareBtn, input.NewButton(input.Config{Debounce: opts.debounce})},
		memory: watched{"memory", memBtn, input.NewButton(input.Config{Debounce: opts.debounce})},
		inc: watched{"target-up", incBtn, input.NewButton(input.Config{
			Debounce: opts.debounce, HoldTime: opts.holdTime, HoldRepeat: true,
		})},
		dec: watched{"target-down", decBtn, input.NewButton(input.Config{
			Debounce: opts.debounce, HoldTime: opts.holdTime, HoldRepeat: true,
		})},
		swtch: watched{"scale-switch", swLine, input.NewButton(input.Config{Debounce: opts.debounce})},
	}

	mgr.Start()
	log.Printf("started: save=%s broker=%s watchdog=%v button-poll=%v",
		opts.savePath, opts.broker, opts.watchdogPoll, opts.buttonPoll)

	buttonTicker := time.NewTicker(opts.buttonPoll)
	defer buttonTicker.Stop()
	controlTicker := time.NewTicker(opts.controlPoll)
	defer controlTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runLoop(time.Now, buttonTicker.C, controlTicker.C, events, sigCh, mgr, dev, tracker, pub, buttons)

	// Relay off and saves flushed before the goodbye goes out.
	mgr.Stop()
	tracker.Update(mgr.Status())
	publishSystem(pub, tracker, mqtt.SystemShutdown)
	drainEvents(pub, events)
	return nil
}

// runLoop drives the controller until a signal arrives: inputs feed the
// manager on the button tick, the scale link and status refresh on the
// control tick, and brew events stream out to telemetry as they happen.
func runLoop(
	now func() time.Time,
	buttonTick, controlTick <-chan time.Time,
	events <-chan brew.Event,
	sig <-chan os.Signal,
	mgr *control.Manager,
	dev scale.Device,
	tracker *status.Tracker,
	pub mqtt.Publisher,
	buttons *buttonSet,
) {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			return

		case <-buttonTick:
			buttons.poll(now(), mgr)

		case <-controlTick:
			if dev != nil {
				mgr.ReconcileScaleConnection(dev)
			}
			tracker.Update(mgr.Status())
			if cs, ok := pub.(mqtt.ConnectionStatus); ok {
				tracker.SetMQTTConnected(cs.Connected())
			}

		case ev := <-events:
			log.Printf("event: %s memory=%s target=%.1f", ev.Type, ev.Memory, ev.Target)
			publishBrewEvent(pub, ev)
		}
	}
}

// buttonSet couples each input line to its edge tracker and routes the
// resulting events into manager operations.
type buttonSet struct {
	paddle watched
	tare   watched
	memory watched
	inc    watched
	dec    watched
	swtch  watched
}

type watched struct {
	name   string
	line   gpio.Input
	button *input.Button
}

func (w *watched) poll(now time.Time) []input.EventType {
	v, err := w.line.Read()
	if err != nil {
		log.Printf("%s read error: %v", w.name, err)
		return nil
	}
	return w.button.Process(v, now)
}

func (b *buttonSet) poll(now time.Time, mgr *control.Manager) {
	for _, ev := range b.paddle.poll(now) {
		// Press starts the shot; release is the watchdog's business.
		if ev == input.Pressed {
			mgr.StartShot()
		}
	}
	for _, ev := range b.tare.poll(now) {
		if ev == input.Pressed {
			mgr.Tare()
		}
	}
	for _, ev := range b.memory.poll(now) {
		if ev == input.Pressed {
			mgr.RotateMemory()
		}
	}
	for _, ev := range b.inc.poll(now) {
		switch ev {
		case input.Released:
			mgr.TargetTap(+1)
		case input.Held:
			mgr.TargetHold(+1)
		}
	}
	for _, ev := range b.dec.poll(now) {
		switch ev {
		case input.Released:
			mgr.TargetTap(-1)
		case input.Held:
			mgr.TargetHold(-1)
		}
	}
	// The scale switch is a level, not an edge: mirror the debounced
	// position every poll so the boot state lands too.
	b.swtch.poll(now)
	mgr.SetScaleSwitch(b.swtch.button.IsPressed())
}

func publishBrewEvent(pub mqtt.Publisher, ev brew.Event) {
	if pub == nil {
		return
	}
	payload, err := mqtt.FormatBrewEvent(ev)
	if err != nil {
		log.Printf("mqtt: %v", err)
		return
	}
	if err := pub.PublishEvent(payload); err != nil {
		// Don't crash on publish failure
		log.Printf("mqtt: %v", err)
	}
}

// publishSystem sends a lifecycle event with the current status embedded.
func publishSystem(pub mqtt.Publisher, tracker *status.Tracker, kind string) {
	if pub == nil {
		return
	}
	now := time.Now()
	doc, err := status.FormatJSON(tracker.Snapshot(), now)
	if err != nil {
		log.Printf("status encode: %v", err)
		doc = nil
	}
	payload, err := mqtt.FormatSystemEvent(kind, now, doc)
	if err != nil {
		log.Printf("mqtt: %v", err)
		return
	}
	if err := pub.PublishSystem(payload); err != nil {
		log.Printf("failed to publish %s event: %v", kind, err)
	} else {
		log.Printf("published %s event", kind)
	}
}

// drainEvents forwards brew events still queued after the loop exits,
// typically the SHOT_ENDED from the shutdown relay-off.
func drainEvents(pub mqtt.Publisher, events <-chan brew.Event) {
	for {
		select {
		case ev := <-events:
			publishBrewEvent(pub, ev)
		default:
			return
		}
	}
}

type namedInput struct {
	name string
	line gpio.Input
}

func printPins(relay gpio.Output, inputs []namedInput) {
	fmt.Printf("relay: %s\n", stateString(relay.Get()))
	for _, in := range inputs {
		v, err := in.line.Read()
		if err != nil {
			fmt.Printf("%s: error (%v)\n", in.name, err)
			continue
		}
		fmt.Printf("%s: %s\n", in.name, stateString(v))
	}
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
