package logging

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the process configuration and emits it as one
// structured event, so a log shows exactly how a command or server was set
// up. Secrets never go in here.
type StartupLogger struct {
	name     string
	version  string
	backend  string
	endpoint string
	models   []string
	database string
	elapsed  time.Duration
	features map[string]bool
	config   map[string]string
}

// NewStartupLogger creates a StartupLogger for a command ("serve", "plan").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:     name,
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// Version sets the build version.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// Backend records the AI provider and its endpoint (empty for hosted).
func (s *StartupLogger) Backend(provider, endpoint string) *StartupLogger {
	s.backend = provider
	s.endpoint = endpoint
	return s
}

// Models records the hosted model priority list.
func (s *StartupLogger) Models(models []string) *StartupLogger {
	s.models = models
	return s
}

// Database records the store path.
func (s *StartupLogger) Database(path string) *StartupLogger {
	s.database = path
	return s
}

// Feature registers a boolean feature flag (e.g. "fallbackPlan").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long startup took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.elapsed = d
	return s
}

// Log emits a single INFO event with everything collected.
func (s *StartupLogger) Log() {
	process := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.version != "" {
		process = process.Str("version", s.version)
	}
	evt := log.Info().Dict("process", process)

	ai := zerolog.Dict().Str("provider", s.backend)
	if s.endpoint != "" {
		ai = ai.Str("endpoint", s.endpoint)
	}
	if len(s.models) > 0 {
		ai = ai.Strs("models", s.models)
	}
	evt = evt.Dict("ai", ai)

	if s.database != "" {
		evt = evt.Str("database", s.database)
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		d := zerolog.Dict()
		for k, v := range s.config {
			d = d.Str(k, v)
		}
		evt = evt.Dict("config", d)
	}
	if s.elapsed > 0 {
		evt = evt.Dur("initDuration", s.elapsed)
	}

	evt.Msg("Startup complete")
}
