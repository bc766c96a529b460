// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"
	"time"

	"github.com/dukex/chatflow/pkg/clients/httpfetch"
	"github.com/dukex/chatflow/pkg/clients/llm"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/dukex/chatflow/pkg/registry"
	"github.com/dukex/chatflow/pkg/retry"
	"github.com/jonboulle/clockwork"
)

// CollaboratorConfig configures the clients executors call out to.
type CollaboratorConfig struct {
	AIAPIURL       string
	AIAPIKey       string
	AIDefaultModel string
	AIRetries      int
	AIBackoff      time.Duration
	HTTPTimeout    time.Duration
}

// NewDependencies builds the executor dependencies backed by the real clients.
func NewDependencies(logger *slog.Logger, clock clockwork.Clock, config CollaboratorConfig) protocol.Dependencies {
	return protocol.Dependencies{
		Logger: logger,
		Clock:  clock,
		AI: llm.NewClient(logger, llm.Config{
			BaseURL:      config.AIAPIURL,
			APIKey:       config.AIAPIKey,
			DefaultModel: config.AIDefaultModel,
		}),
		HTTP:         httpfetch.NewClient(logger, config.HTTPTimeout),
		Retry:        retry.NewPolicy(logger, config.AIRetries, config.AIBackoff),
		HTTPTimeout:  config.HTTPTimeout,
		DefaultModel: config.AIDefaultModel,
	}
}

// NewRegistry registers and builds every built-in executor. A registry that
// misses an action type is a programming error, so it panics.
func NewRegistry(logger *slog.Logger, deps protocol.Dependencies) *registry.Registry {
	reg, err := registry.NewDefaultRegistry(logger, deps)
	if err != nil {
		panic(err)
	}

	return reg
}
