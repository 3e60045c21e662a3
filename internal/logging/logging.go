/*
Copyright 2025 The llm-d Authors

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

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Verbosity levels used with logger.V(...).
const (
	DEBUG = 1
	TRACE = 2
)

// Level names accepted by ParseLevel.
const (
	LevelInfo  = "info"
	LevelDebug = "debug"
	LevelTrace = "trace"
	LevelError = "error"
)

// Options configures the process logger.
type Options struct {
	// Level is one of error, info, debug or trace.
	Level string
	// Development enables console encoding and stack traces on warnings.
	Development bool
	// Output defaults to stderr.
	Output io.Writer
}

// ParseLevel converts a level name into the zap level matching logr verbosity.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", LevelInfo:
		return zapcore.InfoLevel, nil
	case LevelDebug:
		return zapcore.Level(-DEBUG), nil
	case LevelTrace:
		return zapcore.Level(-TRACE), nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger builds a zap-backed logr.Logger and installs it as the controller-runtime logger.
func NewLogger(opts Options) (logr.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return logr.Discard(), err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger := zap.New(
		zap.UseDevMode(opts.Development),
		zap.WriteTo(out),
		zap.Level(lvl),
	)
	ctrl.SetLogger(logger)
	return logger, nil
}
