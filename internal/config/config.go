// Package config loads the server configuration from a CUE file validated
// against an embedded schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cadence/internal/monitor"
)

//go:embed schema.cue
var schemaSource string

// Config is the resolved server configuration.
type Config struct {
	Database string
	Listen   string
	Log      LogConfig
	Policy   monitor.Policy
	Probe    ProbeConfig
	Engine   EngineConfig
}

// LogConfig selects the log level and an optional log file.
type LogConfig struct {
	Level slog.Level
	File  string
}

// ProbeConfig bounds network probes.
type ProbeConfig struct {
	Timeout time.Duration
	Rate    float64 // probes per second per host, 0 = unlimited
	Burst   int
}

// EngineConfig tunes the host engine.
type EngineConfig struct {
	MaxConcurrent    int
	HistoryRetention int64
}

// Error is a configuration error with a CUE position when one is known.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// fileConfig mirrors #Config for decoding.
type fileConfig struct {
	Database string `json:"database"`
	Listen   string `json:"listen"`
	Log      struct {
		Level string `json:"level"`
		File  string `json:"file"`
	} `json:"log"`
	Policy struct {
		Period       string `json:"period"`
		Tolerance    string `json:"tolerance"`
		Continuation string `json:"continuation"`
		Alerts       struct {
			Execution  bool `json:"execution"`
			Scheduling bool `json:"scheduling"`
			Unhealthy  bool `json:"unhealthy"`
		} `json:"alerts"`
	} `json:"policy"`
	Probe struct {
		Timeout string  `json:"timeout"`
		Rate    float64 `json:"rate"`
		Burst   int     `json:"burst"`
	} `json:"probe"`
	Engine struct {
		MaxConcurrent    int   `json:"max_concurrent"`
		HistoryRetention int64 `json:"history_retention"`
	} `json:"engine"`
}

// Default returns the configuration an empty file produces.
func Default() Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load reads and validates the CUE file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates src against the schema and resolves defaults. filename
// is used in error positions.
func Parse(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}

	file := ctx.CompileBytes(src, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return Config{}, toError(err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(file)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Config{}, toError(err)
	}

	var fc fileConfig
	if err := value.Decode(&fc); err != nil {
		return Config{}, toError(err)
	}
	return fc.resolve()
}

func (fc fileConfig) resolve() (Config, error) {
	var errs []error
	duration := func(field, s string) time.Duration {
		d, err := time.ParseDuration(s)
		if err != nil {
			errs = append(errs, &Error{Field: field, Message: err.Error()})
		}
		return d
	}

	cfg := Config{
		Database: fc.Database,
		Listen:   fc.Listen,
		Log:      LogConfig{File: fc.Log.File},
		Policy: monitor.Policy{
			Period:       duration("policy.period", fc.Policy.Period),
			Tolerance:    duration("policy.tolerance", fc.Policy.Tolerance),
			Continuation: monitor.ContinuationPolicy(fc.Policy.Continuation),
			Alerts: monitor.AlertPolicy{
				Execution:  fc.Policy.Alerts.Execution,
				Scheduling: fc.Policy.Alerts.Scheduling,
				Unhealthy:  fc.Policy.Alerts.Unhealthy,
			},
		},
		Probe: ProbeConfig{
			Timeout: duration("probe.timeout", fc.Probe.Timeout),
			Rate:    fc.Probe.Rate,
			Burst:   fc.Probe.Burst,
		},
		Engine: EngineConfig{
			MaxConcurrent:    fc.Engine.MaxConcurrent,
			HistoryRetention: fc.Engine.HistoryRetention,
		},
	}
	if err := cfg.Log.Level.UnmarshalText([]byte(fc.Log.Level)); err != nil {
		errs = append(errs, &Error{Field: "log.level", Message: err.Error()})
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	if err := cfg.Policy.Validate(); err != nil {
		return Config{}, &Error{Field: "policy", Message: err.Error()}
	}
	if cfg.Probe.Timeout <= 0 {
		return Config{}, &Error{Field: "probe.timeout", Message: "must be positive"}
	}
	return cfg, nil
}

// toError converts the first CUE error into an *Error with its position.
func toError(err error) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return &Error{Message: err.Error()}
	}
	first := list[0]
	format, args := first.Msg()
	e := &Error{
		Field:   pathString(first.Path()),
		Message: fmt.Sprintf(format, args...),
		Pos:     first.Position(),
	}
	if e.Field != "" {
		e.Message = e.Field + ": " + e.Message
	}
	return e
}

func pathString(path []string) string {
	s := ""
	for i, p := range path {
		if i > 0 {
			s += "."
		}
		s += p
	}
	return s
}
