package live

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // profiling is opt-in via flag
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/racelogger/laptimer-go/log"
	"github.com/racelogger/laptimer-go/pkg/config"
	"github.com/racelogger/laptimer-go/pkg/protocol"
	"github.com/racelogger/laptimer-go/pkg/relay"
	"github.com/racelogger/laptimer-go/pkg/session"
	"github.com/racelogger/laptimer-go/pkg/source"
	"github.com/racelogger/laptimer-go/pkg/timing"
	"github.com/racelogger/laptimer-go/pkg/track"
	"github.com/racelogger/laptimer-go/pkg/utils"
	"github.com/racelogger/laptimer-go/pkg/web"
)

var appConfig config.Config // holds processed config values

func NewLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "starts a live timing session from a GPS receiver",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			appConfig = config.Config{}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return Start()
		},
	}
	cmd.Flags().StringVarP(&config.Source,
		"source",
		"s",
		"serial:/dev/ttyUSB0",
		"receiver byte stream (serial:<dev>, tcp:<addr>, file:<path>)")
	cmd.Flags().IntVar(&config.SerialBaud,
		"serial-baud",
		115200,
		"baud rate for serial sources")
	cmd.Flags().StringVarP(&config.Track,
		"track",
		"t",
		"",
		"track definition file (yaml)")
	//nolint:errcheck // flag exists
	cmd.MarkFlagRequired("track")
	cmd.Flags().StringSliceVar(&config.Drivers,
		"drivers",
		nil,
		"ordered driver roster; the first entry starts the session")
	cmd.Flags().StringVar(&config.MinPitTime,
		"min-pit-time",
		"0s",
		"pit clock stops automatically after this duration (0: manual)")
	cmd.Flags().StringVar(&config.WebServerAddr,
		"web-addr",
		"localhost:8088",
		"listen address for the live display server (empty: disabled)")

	AddCommonFlags(cmd)
	return cmd
}

// AddCommonFlags registers the ambient flags shared with the replay command.
func AddCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format")
	cmd.Flags().StringVar(&config.LogConfig,
		"log-config",
		"",
		"log config file with per-logger filter rules")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().BoolVar(&appConfig.PrintFixes,
		"print-fixes",
		false,
		"if true and log level is debug, every decoded fix will be printed")
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// Start assembles and runs the session until a signal arrives or the source
// ends. The replay command reuses it with a file source.
//
//nolint:funlen,cyclop // assembly of all collaborators
func Start() error {
	var logger *log.Logger
	var telemetry *config.Telemetry
	switch {
	case config.LogConfig != "":
		logCfg, cfgErr := log.LoadConfig(config.LogConfig)
		if cfgErr != nil {
			return cfgErr
		}
		var lErr error
		if logger, lErr = log.NewWithConfig(
			os.Stderr,
			logCfg,
			log.WithCaller(true),
			log.AddCallerSkip(1)); lErr != nil {
			return lErr
		}
	case config.LogFormat == "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	log.ResetDefault(logger)

	log.Debug("Config:",
		log.String("url", config.URL),
		log.String("source", config.Source),
		log.String("track", config.Track),
	)

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // localhost only
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	waitForRequiredServices()

	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		var err error
		if telemetry, err = config.SetupTelemetry(context.Background()); err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	trackDef, err := track.Load(config.Track)
	if err != nil {
		log.Error("could not load track", log.ErrorField(err))
		return err
	}
	minPit, err := time.ParseDuration(config.MinPitTime)
	if err != nil {
		log.Warn("invalid min-pit-time, using manual pit clock", log.ErrorField(err))
		minPit = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := session.NewController()
	go ctrl.Run(ctx)
	ctrl.Arm(timing.RaceConfig{
		Track:          *trackDef,
		Drivers:        config.Drivers,
		MinPitDuration: minPit,
	})
	ctrl.StartSession()

	if config.URL != "" {
		nc, ncErr := nats.Connect(config.URL, nats.Name("laptimer"))
		if ncErr != nil {
			log.Error("could not connect NATS", log.ErrorField(ncErr))
			return ncErr
		}
		natsRelay := relay.NewNatsRelay(nc)
		defer natsRelay.Close()
		go natsRelay.Run(ctx, ctrl)
	}

	if config.WebServerAddr != "" {
		webServer := web.NewServer(config.WebServerAddr, ctrl)
		go func() {
			if wErr := webServer.Run(ctx); wErr != nil {
				log.Error("webserver stopped", log.ErrorField(wErr))
			}
		}()
	}

	src, err := source.New(ctx, config.Source,
		source.Options{BaudRate: config.SerialBaud})
	if err != nil {
		log.Error("could not open source", log.ErrorField(err))
		return err
	}
	defer src.Close()

	dec := protocol.NewDecoder(protocol.WithLogger(log.GetLogger("protocol")))
	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- source.Pump(ctx, src, func(chunk []byte) {
			for _, fix := range dec.Decode(chunk) {
				if appConfig.PrintFixes {
					log.Debug("fix",
						log.Float64("lat", fix.Lat),
						log.Float64("lon", fix.Lon),
						log.Time("time", fix.Time))
				}
				ctrl.Ingest(fix)
			}
		})
	}()
	setupGoRoutinesDump()
	log.Info("Session running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	select {
	case v := <-sigChan:
		log.Debug("Got signal ", log.Any("signal", v))
	case err = <-pumpDone:
		if err != nil {
			log.Error("source failed", log.ErrorField(err))
		}
	}
	ctrl.StopSession()
	snapCtx, snapCancel := context.WithTimeout(context.Background(), time.Second)
	if snap, sErr := ctrl.CurrentSnapshot(snapCtx); sErr == nil {
		log.Info("Session result",
			log.Int("laps", snap.LapCount),
			log.Duration("best", snap.BestLapTime),
			log.Duration("last", snap.LastLapTime))
	}
	snapCancel()
	cancel()
	if telemetry != nil {
		telemetry.Shutdown()
	}
	log.Info("Session terminated")
	return err
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func waitForRequiredServices() {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}

	wg := sync.WaitGroup{}
	checkTCP := func(addr string) {
		if err = utils.WaitForTCP(addr, timeout); err != nil {
			log.Fatal("required services not ready", log.ErrorField(err))
		}
		wg.Done()
	}

	if natsAddr := utils.ExtractFromNATSURL(config.URL); natsAddr != "" {
		wg.Add(1)
		go checkTCP(natsAddr)
	}
	log.Debug("Waiting for connection checks to return")
	wg.Wait()
	log.Debug("Required services are available")
}
