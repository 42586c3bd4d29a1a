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

// Command mosaico talks to a Mosaico agent service through the LLM
// provider interface.
//
// Usage:
//
//	mosaico chat "plan a trip to Rome"
//	mosaico chat --config mosaico.yaml --llm planner
//	mosaico send planner booker "book the 9am flight"
//	mosaico status --config mosaico.yaml
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/mosaico/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Chat     ChatCmd     `cmd:"" help:"Chat with an agent. Reads turns from stdin when no message is given."`
	Complete CompleteCmd `cmd:"" help:"Run a raw prompt completion."`
	Models   ModelsCmd   `cmd:"" help:"List the models served by the backend."`
	Health   HealthCmd   `cmd:"" help:"Probe the backend health endpoint."`
	Send     SendCmd     `cmd:"" help:"Send a one-shot message from one agent to another."`
	Status   StatusCmd   `cmd:"" help:"Probe every configured LLM."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the config file."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config  string   `short:"c" help:"Path to config file." type:"path"`
	LLM     string   `short:"l" name:"llm" help:"Configured LLM to use (default: the 'default' entry)."`
	APIBase string   `name:"api-base" help:"Agent service base URL." env:"MOSAICO_API_BASE"`
	APIKey  string   `name:"api-key" help:"Bearer token for the agent service." env:"MOSAICO_API_KEY"`
	Model   string   `short:"m" help:"Model identifier." env:"MOSAICO_MODEL"`
	EnvFile []string `name:"env-file" help:"Dotenv files to load (default: .env.local, .env)." type:"path"`

	LogLevel  string `help:"Log level (debug, info, warn, error)." env:"LOG_LEVEL"`
	LogFile   string `help:"Log file path (empty = stderr)." env:"LOG_FILE"`
	LogFormat string `help:"Log format (simple, verbose, json)." env:"LOG_FORMAT"`

	stdout io.Writer `kong:"-"`
	stdin  io.Reader `kong:"-"`
}

func (c *CLI) out() io.Writer {
	if c.stdout == nil {
		return os.Stdout
	}
	return c.stdout
}

func (c *CLI) in() io.Reader {
	if c.stdin == nil {
		return os.Stdin
	}
	return c.stdin
}

func newParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	return kong.New(cli, append([]kong.Option{
		kong.Name("mosaico"),
		kong.Description("Mosaico - agent-to-agent LLM provider"),
		kong.UsageOnError(),
	}, opts...)...)
}

func main() {
	// Dotenv files must be loaded before kong resolves env-backed flags.
	if err := config.LoadEnvFiles(envFilesFromArgs(os.Args[1:])...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := CLI{}
	parser, err := newParser(&cli, kong.BindTo(ctx, (*context.Context)(nil)))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = kctx.Run(&cli)
	if ctx.Err() != nil {
		// Interrupted: partial output has already been printed.
		return
	}
	kctx.FatalIfErrorf(err)
}

// envFilesFromArgs scans raw arguments for --env-file values.
func envFilesFromArgs(args []string) []string {
	var files []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return files
		case arg == "--env-file" && i+1 < len(args):
			files = append(files, args[i+1])
			i++
		default:
			if v, ok := strings.CutPrefix(arg, "--env-file="); ok {
				files = append(files, v)
			}
		}
	}
	return files
}
