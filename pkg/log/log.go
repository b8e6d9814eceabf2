/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package log builds the zap loggers used across the broker.
package log

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format is the encoding of the log lines.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Formats is a list of log formats.
type Formats []Format

// AvailableFormats lists the supported log formats.
var AvailableFormats = Formats{FormatJSON, FormatConsole}

func (f Formats) String() string {
	names := make([]string, 0, len(f))
	for _, format := range f {
		names = append(names, string(format))
	}
	return strings.Join(names, ", ")
}

// Options holds the logging flags.
type Options struct {
	// Debug enables debug level logging.
	Debug bool
	// Format is one of AvailableFormats.
	Format string
}

// Validate returns an error if the format is not supported.
func (o Options) Validate() error {
	for _, format := range AvailableFormats {
		if strings.EqualFold(o.Format, string(format)) {
			return nil
		}
	}
	return fmt.Errorf("invalid log format %q, must be one of: %s", o.Format, AvailableFormats)
}

// New returns a logger writing to stderr in the given format.
func New(debug bool, format Format) *zap.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if Format(strings.ToLower(string(format))) == FormatConsole {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	opts := []zap.Option{zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if debug {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level), opts...)
}

// NewFromOptions returns a logger configured by the options.
func NewFromOptions(o Options) *zap.Logger {
	return New(o.Debug, Format(o.Format))
}
