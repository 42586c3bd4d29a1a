// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/mosaico/pkg/model"
	"github.com/kadirpekel/mosaico/pkg/observability"
)

// statusConcurrency caps parallel probes in the status command.
const statusConcurrency = 4

// CompleteCmd runs a raw prompt completion.
type CompleteCmd struct {
	Prompt []string `arg:"" help:"Prompt text."`

	CompletionFlags `embed:""`
}

func (c *CompleteCmd) Run(ctx context.Context, cli *CLI) error {
	s, err := cli.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	llm, err := s.LLM(ctx, cli.LLM)
	if err != nil {
		return err
	}

	out, err := model.Complete(ctx, llm, strings.Join(c.Prompt, " "), c.options())
	if out != "" {
		fmt.Fprintln(cli.out(), out)
	}
	if errors.Is(err, model.ErrUnsupportedOperation) {
		return fmt.Errorf("%w (use 'mosaico chat' instead)", err)
	}
	return err
}

// ModelsCmd lists the backend model catalogue.
type ModelsCmd struct{}

func (c *ModelsCmd) Run(ctx context.Context, cli *CLI) error {
	s, err := cli.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	llm, err := s.LLM(ctx, cli.LLM)
	if err != nil {
		return err
	}

	models, err := llm.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		fmt.Fprintln(cli.out(), m)
	}
	return nil
}

// HealthCmd probes the health endpoint. It exits non-zero when the service
// is unavailable.
type HealthCmd struct{}

func (c *HealthCmd) Run(ctx context.Context, cli *CLI) error {
	s, err := cli.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	llm, err := s.LLM(ctx, cli.LLM)
	if err != nil {
		return err
	}

	if !llm.IsServiceAvailable(ctx) {
		fmt.Fprintln(cli.out(), "unavailable")
		return errors.New("service unavailable")
	}
	fmt.Fprintln(cli.out(), "ok")
	return nil
}

// SendCmd delivers a one-shot agent-to-agent message.
type SendCmd struct {
	Source  string   `arg:"" help:"Sending agent."`
	Target  string   `arg:"" help:"Receiving agent."`
	Message []string `arg:"" help:"Message text."`
}

func (c *SendCmd) Run(ctx context.Context, cli *CLI) error {
	s, err := cli.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	llm, err := s.LLM(ctx, cli.LLM)
	if err != nil {
		return err
	}

	messenger, ok := llm.(model.AgentMessenger)
	if !ok {
		return model.Unsupported(llm.Provider(), "agent messaging")
	}

	ack, err := messenger.SendAgentMessage(ctx, c.Source, c.Target, strings.Join(c.Message, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out(), ack)
	return nil
}

// StatusCmd probes every configured LLM concurrently.
type StatusCmd struct {
	Models bool `help:"Also list each backend's models."`
}

type llmStatus struct {
	name      string
	provider  model.Provider
	model     string
	available bool
	models    []string
	err       error
	elapsed   time.Duration
}

func (c *StatusCmd) Run(ctx context.Context, cli *CLI) error {
	s, err := cli.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	// Probe spans nest under one span per run.
	ctx, span := s.obs.Tracer(observability.InstrumentationName).Start(ctx, "mosaico.status")
	defer span.End()

	names := s.llms.Names()
	results := make([]llmStatus, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusConcurrency)
	for i, name := range names {
		g.Go(func() error {
			results[i] = c.probe(gctx, s, name)
			return nil
		})
	}
	_ = g.Wait()

	tw := tabwriter.NewWriter(cli.out(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPROVIDER\tMODEL\tSTATUS\tLATENCY")
	var unavailable int
	for _, r := range results {
		status := "ok"
		switch {
		case r.err != nil:
			status = "error: " + r.err.Error()
			unavailable++
		case !r.available:
			status = "unavailable"
			unavailable++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.name, r.provider, r.model, status, r.elapsed.Round(time.Millisecond))
		if c.Models && len(r.models) > 0 {
			fmt.Fprintf(tw, "\tmodels: %s\t\t\t\n", strings.Join(r.models, ", "))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if unavailable > 0 {
		return fmt.Errorf("%d of %d LLMs unavailable", unavailable, len(results))
	}
	return nil
}

func (c *StatusCmd) probe(ctx context.Context, s *session, name string) (st llmStatus) {
	st.name = name
	start := time.Now()
	defer func() { st.elapsed = time.Since(start) }()

	llm, err := s.LLM(ctx, name)
	if err != nil {
		st.err = err
		return st
	}
	st.provider = llm.Provider()
	st.model = llm.Name()
	st.available = llm.IsServiceAvailable(ctx)

	if c.Models && st.available {
		st.models, st.err = llm.ListModels(ctx)
	}
	return st
}
