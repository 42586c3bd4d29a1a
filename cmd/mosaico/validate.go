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
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/mosaico/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	Config string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH" type:"path"`

	Format string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`

	// PrintConfig prints the expanded configuration
	PrintConfig bool `short:"p" name:"print-config" help:"Print the expanded configuration (with defaults applied and env vars resolved)."`

	Watch bool `short:"w" help:"Keep running and re-validate whenever the file changes."`
}

func (c *ValidateCmd) Run(ctx context.Context, cli *CLI) error {
	out := cli.out()

	// LoadConfigFile applies defaults and validates.
	cfg, loader, err := config.LoadConfigFile(ctx, c.Config,
		config.WithOnChange(func(cfg *config.Config) { _ = c.report(out, cfg) }),
		config.WithOnError(func(err error) { printLoadError(out, c.Format, c.Config, err) }),
	)
	if err != nil {
		printLoadError(out, c.Format, c.Config, err)
		return fmt.Errorf("config validation failed")
	}
	defer loader.Close()

	if err := c.report(out, cfg); err != nil {
		return err
	}
	if !c.Watch {
		return nil
	}

	if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (c *ValidateCmd) report(w io.Writer, cfg *config.Config) error {
	if c.PrintConfig {
		return printExpandedConfig(w, c.Format, c.Config, cfg)
	}
	printSuccess(w, c.Format, c.Config, cfg)
	return nil
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type jsonOutput struct {
	Valid  bool              `json:"valid"`
	File   string            `json:"file"`
	LLMs   []string          `json:"llms,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func printLoadError(w io.Writer, format, file string, err error) {
	switch format {
	case "json":
		printJSONResult(w, jsonOutput{File: file, Errors: []ValidationError{{Type: "load", Message: err.Error()}}})
	case "verbose":
		fmt.Fprintf(w, "Configuration Load Error\n")
		fmt.Fprintf(w, "========================\n\n")
		fmt.Fprintf(w, "File:    %s\n", file)
		fmt.Fprintf(w, "Error:   %s\n", err.Error())
	default:
		fmt.Fprintf(w, "%s: load error: %s\n", file, err.Error())
	}
}

func printSuccess(w io.Writer, format, file string, cfg *config.Config) {
	switch format {
	case "json":
		printJSONResult(w, jsonOutput{Valid: true, File: file, LLMs: cfg.LLMNames()})
	case "verbose":
		fmt.Fprintf(w, "Configuration Validation Successful\n")
		fmt.Fprintf(w, "===================================\n\n")
		fmt.Fprintf(w, "File:    %s\n", file)
		fmt.Fprintf(w, "Status:  OK Valid\n")
		for _, name := range cfg.LLMNames() {
			llm := cfg.LLMs[name]
			target := llm.APIBase
			if llm.Type == config.LLMTypePlugin {
				target = "plugin " + llm.Plugin
			}
			fmt.Fprintf(w, "LLM:     %s (%s, %s)\n", name, llm.Type, target)
		}
	default:
		fmt.Fprintf(w, "%s: valid\n", file)
	}
}

func printExpandedConfig(w io.Writer, format, file string, cfg *config.Config) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
	default:
		fmt.Fprintf(w, "# Expanded Configuration from: %s\n", file)
		fmt.Fprintf(w, "# (defaults applied, env vars resolved)\n\n")

		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as YAML: %w", err)
		}
		return encoder.Close()
	}
	return nil
}

func printJSONResult(w io.Writer, output jsonOutput) {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(w, "Error encoding JSON: %v\n", err)
	}
}
