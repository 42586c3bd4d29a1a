// Package mosaico adapts Mosaico agent services to a generic chat LLM
// provider interface.
//
// A Mosaico service is a collection of cooperating agents reached over the
// A2A (Agent-to-Agent) protocol. The provider in pkg/model/mosaico turns a
// chat conversation into one A2A message, streams the agent's reply back as
// text fragments and exposes the service's health and model catalogue.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/kadirpekel/mosaico/cmd/mosaico@latest
//
// Chat against a local service:
//
//	export MOSAICO_API_BASE=http://localhost:12000
//	mosaico chat "plan a three day trip to Rome"
//
// Or describe several backends in a config file:
//
//	llms:
//	  default:
//	    type: mosaico
//	    model: planner
//	    api_base: ${MOSAICO_API_BASE:-http://localhost:12000}
//	    api_key: ${MOSAICO_API_KEY}
//	  local:
//	    type: plugin
//	    plugin: echo
//	plugins:
//	  echo:
//	    path: ./bin/mosaico-plugin
//
// and check them all:
//
//	mosaico status --config mosaico.yaml
//
// # Using as Go Library
//
//	import (
//	    "github.com/kadirpekel/mosaico/pkg/config"
//	    "github.com/kadirpekel/mosaico/pkg/model/mosaico"
//	)
//
//	llm, err := mosaico.NewFromConfig(&config.LLMConfig{Model: "planner"})
//	if err != nil {
//	    return err
//	}
//	defer llm.Close()
//
//	for frag, err := range llm.StreamChat(ctx, messages, nil) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(frag.Content)
//	}
//
// # Packages
//
//   - pkg/model: provider interface, chat types and error kinds
//   - pkg/model/mosaico: the Mosaico A2A provider
//   - pkg/llms: named provider registry built from config
//   - pkg/plugins: out-of-process providers over hashicorp/go-plugin
//   - pkg/config: YAML configuration with env expansion and hot reload
//   - pkg/observability: OpenTelemetry tracing and Prometheus metrics
package mosaico
