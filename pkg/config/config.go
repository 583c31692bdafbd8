package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	URL               string // URL of the NATS server used to relay telemetry
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogConfig         string // path to log config file
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry
	ProfilingPort     int    // port for profiling
	WaitForServices   string // duration to wait for other services to be ready

	Track      string   // path to the track definition file (yaml)
	Drivers    []string // ordered driver roster
	MinPitTime string   // minimum pit stop duration (e.g. 45s)

	Source     string // receiver byte stream source (serial:<dev>, tcp:<addr>, file:<path>)
	SerialBaud int    // baud rate for serial sources

	WebServerAddr string // listen addr for the live telemetry websocket server
)

// Config holds the configuration values which are used by the application
type Config struct {
	PrintFixes bool // if true, every decoded fix is printed on debug level
}
