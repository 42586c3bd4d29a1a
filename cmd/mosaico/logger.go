// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kadirpekel/mosaico/pkg/config"
	"github.com/kadirpekel/mosaico/pkg/logger"
)

// initLogger initializes the default logger from CLI flags. Flags already
// carry their env fallbacks; empty values fall back to the defaults.
func initLogger(level, file, format string) (func(), error) {
	return applyLogger(&config.LoggerConfig{Level: level, File: file, Format: format})
}

// applyConfigLogger re-initializes the logger from the config file's logger
// section for every field the CLI left empty.
func applyConfigLogger(cli *CLI, cfg *config.LoggerConfig) (func(), error) {
	if cfg == nil {
		return nil, nil
	}
	merged := *cfg
	if cli.LogLevel != "" {
		merged.Level = cli.LogLevel
	}
	if cli.LogFile != "" {
		merged.File = cli.LogFile
	}
	if cli.LogFormat != "" {
		merged.Format = cli.LogFormat
	}
	return applyLogger(&merged)
}

func applyLogger(cfg *config.LoggerConfig) (func(), error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer = os.Stderr
	var cleanup func()
	if cfg.File != "" {
		file, cleanupFn, err := logger.OpenLogFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	}

	logger.Init(level, output, cfg.Format)
	return cleanup, nil
}
