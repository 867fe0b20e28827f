// taglink - tag polling gateway
//
// Polls the configured tags through the tag engine, shows them in a
// terminal monitor, and republishes value changes to MQTT, Valkey and
// Kafka. Writes arrive over the REST API and MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"taglink/api"
	"taglink/backend"
	"taglink/config"
	"taglink/kafka"
	"taglink/logging"
	"taglink/mqtt"
	"taglink/tagman"
	"taglink/tui"
	"taglink/valkey"
)

// Version is set at build time via -ldflags
var Version = "dev"

// preprocessLogDebugFlag handles --log-debug without a value by injecting "all" as the default.
func preprocessLogDebugFlag(args []string) []string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--log-debug" || arg == "-log-debug" {
			// Next arg missing or another flag: no value given
			if i+1 >= len(args) || (len(args[i+1]) > 0 && args[i+1][0] == '-') {
				out := make([]string, 0, len(args)+1)
				out = append(out, args[:i+1]...)
				out = append(out, "all")
				return append(out, args[i+1:]...)
			}
			return args
		}
		if len(arg) > 11 && (arg[:11] == "-log-debug=" || (len(arg) > 12 && arg[:12] == "--log-debug=")) {
			return args
		}
	}
	return args
}

// debugFilter maps the -log-debug value to a logger filter; "" logs everything.
func debugFilter(v string) string {
	switch v {
	case "all", "true", "1":
		return ""
	}
	return v
}

// Command line flags
var (
	configPath   = flag.String("config", config.DefaultPath(), "Path to configuration file")
	showVersion  = flag.Bool("version", false, "Show version and exit")
	noTUI        = flag.Bool("d", false, "Disable local TUI (headless mode)")
	noTUILong    = flag.Bool("no-tui", false, "Disable local TUI (headless mode)")
	logFile      = flag.String("log", "", "Path to log file (optional)")
	logDebug     = flag.String("log-debug", "", "Enable debug logging to debug.log, optionally filtered (e.g. tagman,mqtt)")
	hashPassword = flag.String("hash-password", "", "Print the bcrypt hash of a password for web.users and exit")
)

func main() {
	os.Args = append(os.Args[:1], preprocessLogDebugFlag(os.Args[1:])...)
	flag.Parse()

	if *showVersion {
		fmt.Printf("taglink %s\n", Version)
		os.Exit(0)
	}

	if *hashPassword != "" {
		hash, err := api.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error hashing password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		os.Exit(0)
	}

	headless := *noTUI || *noTUILong

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// First run: leave a config file to edit
	if _, err := os.Stat(*configPath); errors.Is(err, os.ErrNotExist) {
		if err := cfg.Save(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not write default config: %v\n", err)
		} else {
			fmt.Printf("Wrote default config to %s\n", *configPath)
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, headless); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// kafkaConfigs converts the YAML cluster entries, keeping the producer
// defaults for unset retry settings.
func kafkaConfigs(entries []config.KafkaConfig) []kafka.Config {
	out := make([]kafka.Config, 0, len(entries))
	for _, kc := range entries {
		c := kafka.DefaultConfig(kc.Name)
		c.Enabled = kc.Enabled
		if len(kc.Brokers) > 0 {
			c.Brokers = kc.Brokers
		}
		c.UseTLS = kc.UseTLS
		c.TLSSkipVerify = kc.TLSSkipVerify
		c.SASLMechanism = kafka.SASLMechanism(kc.SASLMechanism)
		c.Username = kc.Username
		c.Password = kc.Password
		if kc.RequiredAcks != 0 {
			c.RequiredAcks = kc.RequiredAcks
		}
		if kc.MaxRetries > 0 {
			c.MaxRetries = kc.MaxRetries
		}
		if kc.RetryBackoff > 0 {
			c.RetryBackoff = kc.RetryBackoff
		}
		c.AutoCreateTopics = kc.AutoCreateTopics
		c.Selector = kc.Selector
		c.Topic = kc.Topic
		out = append(out, c)
	}
	return out
}

// publishers groups the republishing managers.
type publishers struct {
	tags   *tagman.Manager
	mqtt   *mqtt.Manager
	valkey *valkey.Manager
	kafka  *kafka.Manager
}

func newPublishers(cfg *config.Config, tags *tagman.Manager) *publishers {
	p := &publishers{
		tags:   tags,
		mqtt:   mqtt.NewManager(),
		valkey: valkey.NewManager(),
		kafka:  kafka.NewManager(cfg.Namespace),
	}
	p.mqtt.LoadFromConfig(cfg.MQTT, cfg.Namespace)
	p.valkey.LoadFromConfig(cfg.Valkey, cfg.Namespace)
	p.kafka.LoadFromConfigs(kafkaConfigs(cfg.Kafka))

	p.mqtt.SetWriteHandler(tags.WriteTag)
	p.mqtt.SetWriteValidator(p.writable)

	tags.OnValueChange(func(changes []tagman.ValueChange) {
		for _, c := range changes {
			w := p.writable(c.TagName)
			p.mqtt.Publish(c.TagName, c.TypeName, c.Value, c.Status, false)
			p.valkey.Publish(c.TagName, c.TypeName, c.Value, c.Status, w)
			p.kafka.Publish(c.TagName, c.TypeName, c.Value, c.Status, w, false)
		}
	})

	// Initial sync for every (re)connect
	p.valkey.SetOnConnectCallback(func() {
		for _, c := range tags.GetAllCurrentValues() {
			p.valkey.Publish(c.TagName, c.TypeName, c.Value, c.Status, p.writable(c.TagName))
		}
	})
	return p
}

func (p *publishers) writable(name string) bool {
	mt := p.tags.GetTag(name)
	return mt != nil && mt.Config.Writable
}

// start brings up every enabled publisher. Connection attempts block,
// so each kind runs in its own group goroutine.
func (p *publishers) start(g *errgroup.Group) {
	g.Go(func() error {
		if n := p.mqtt.StartAll(); n > 0 {
			tui.StoreLogLevel("MQTT", "%d publisher(s) connected", n)
			for _, c := range p.tags.GetAllCurrentValues() {
				p.mqtt.Publish(c.TagName, c.TypeName, c.Value, c.Status, true)
			}
		}
		return nil
	})
	g.Go(func() error {
		if n := p.valkey.StartAll(); n > 0 {
			tui.StoreLogLevel("VALKEY", "%d publisher(s) connected", n)
		}
		return nil
	})
	g.Go(func() error {
		if n := p.kafka.ConnectEnabled(); n > 0 {
			tui.StoreLogLevel("KAFKA", "%d cluster(s) connected", n)
			for _, c := range p.tags.GetAllCurrentValues() {
				p.kafka.Publish(c.TagName, c.TypeName, c.Value, c.Status, p.writable(c.TagName), true)
			}
		}
		return nil
	})
}

func (p *publishers) stop() {
	p.mqtt.StopAll()
	p.valkey.StopAll()
	p.kafka.StopAll()
}

func (p *publishers) services() []tui.Service {
	return []tui.Service{
		{Name: "MQTT", Running: p.mqtt.AnyRunning},
		{Name: "Valkey", Running: p.valkey.AnyRunning},
		{Name: "Kafka", Running: p.kafka.AnyConnected},
	}
}

// run is the unified startup flow for both TUI and headless modes.
func run(cfg *config.Config, headless bool) error {
	store := tui.InitDebugStore(1000)

	var fileLogger *logging.FileLogger
	if *logFile != "" {
		var err error
		fileLogger, err = logging.NewFileLogger(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to open log file: %v\n", err)
		} else {
			store.SetFileLogger(fileLogger)
			defer fileLogger.Close()
		}
	}

	if *logDebug != "" {
		debugLogger, err := logging.NewDebugLogger("debug.log")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to open debug log: %v\n", err)
		} else {
			filter := debugFilter(*logDebug)
			debugLogger.SetFilter(filter)
			logging.SetGlobalDebugLogger(debugLogger)
			defer debugLogger.Close()
			if filter == "" {
				tui.StoreLog("Debug logging enabled (all components) - writing to debug.log")
			} else {
				tui.StoreLog("Debug logging enabled (filter: %s) - writing to debug.log", filter)
			}
		}
	}

	eng, closeEngine, err := backend.Open(cfg.Engine.Kind, cfg.Engine.Library, int32(cfg.Engine.DebugLevel))
	if err != nil {
		return fmt.Errorf("open %s engine: %w", cfg.Engine.Kind, err)
	}

	tags := tagman.NewManager(eng, cfg.PollRate)
	if err := tags.LoadFromConfig(cfg); err != nil {
		tui.StoreLogLevel("ERROR", "%v", err)
	}
	tui.StoreLog("Loaded %d tag(s) on the %s engine", len(tags.ListTags()), cfg.Engine.Kind)

	pubs := newPublishers(cfg, tags)
	tags.Start()

	var server *api.Server
	if cfg.Web.Enabled {
		s := api.NewServer(&cfg.Web, tags)
		if err := s.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to start REST API: %v\n", err)
			fmt.Fprintf(os.Stderr, "Continuing without HTTP server.\n")
		} else {
			server = s
			tui.StoreLogLevel("API", "REST API at %s", s.Address())
			if headless {
				fmt.Printf("REST API at %s\n", s.Address())
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	pubs.start(g)

	if headless {
		fmt.Println("Running in headless mode. Press Ctrl+C to stop.")
		g.Go(func() error {
			<-ctx.Done()
			return nil
		})
	} else {
		// Keep runtime errors from corrupting the terminal display.
		stderrPath := filepath.Join(filepath.Dir(*configPath), "taglink-crash.log")
		if f, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			redirectStderr(f)
			defer f.Close()
		}

		if cfg.UI.ASCIIMode {
			tui.UseASCIIBorders()
		}
		app := tui.NewApp(cfg.Namespace, tags, pubs.services(), store)
		g.Go(func() error {
			defer stop()
			return app.Run()
		})
		g.Go(func() error {
			<-ctx.Done()
			app.Stop()
			return nil
		})
	}

	runErr := g.Wait()
	if headless {
		fmt.Println("\nShutting down...")
	}

	// Publishers first so nothing is published from a stopping manager,
	// then the API, then the handles.
	shutdownDone := make(chan struct{})
	go func() {
		pubs.stop()
		if server != nil {
			server.Stop()
		}
		tags.Stop()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		// Handles are gone; the engine can go too.
		if err := closeEngine(); err != nil {
			logging.DebugLog("engine", "close: %v", err)
		}
	case <-time.After(5 * time.Second):
		tui.StoreLogLevel("ERROR", "shutdown timed out")
	}

	if headless {
		fmt.Println("Stopped")
	}
	return runErr
}
