package cmd

import (
	"github.com/dukex/chatflow/pkg/clients/meta"
	"github.com/dukex/chatflow/pkg/engine"
	"github.com/dukex/chatflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

// CommonFlags are the flags every binary accepts.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (file path or postgres://)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, gochannel)",
			Value:   "kafka",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for the distributed conversation lease; in-process locking when empty",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   log.FormatText,
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// MessengerFlags configure the Meta Graph API client.
func MessengerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "meta-api-url",
			Usage:   "Meta Graph API base URL",
			Value:   meta.DefaultAPIURL,
			Sources: cli.EnvVars("META_API_URL"),
		},
		&cli.StringFlag{
			Name:    "meta-page-tokens",
			Usage:   "Page access tokens as pageId=token pairs separated by commas",
			Sources: cli.EnvVars("META_PAGE_TOKENS"),
		},
	}
}

// EngineFlags configure the executors and the flow engine.
func EngineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "ai-api-url",
			Usage:   "Base URL of the OpenAI-compatible completion API",
			Sources: cli.EnvVars("AI_API_URL"),
		},
		&cli.StringFlag{
			Name:    "ai-api-key",
			Usage:   "API key of the completion API",
			Sources: cli.EnvVars("AI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "ai-default-model",
			Usage:   "Model used by ai_node actions that do not set one",
			Sources: cli.EnvVars("AI_DEFAULT_MODEL"),
		},
		&cli.IntFlag{
			Name:    "ai-retries",
			Usage:   "Retries of a failed AI call",
			Value:   engine.DefaultAIRetries,
			Sources: cli.EnvVars("AI_RETRIES"),
		},
		&cli.DurationFlag{
			Name:    "ai-backoff",
			Usage:   "Initial backoff between AI retries",
			Value:   engine.DefaultAIBackoff,
			Sources: cli.EnvVars("AI_BACKOFF"),
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Usage:   "Timeout of http_request actions that do not set one",
			Value:   engine.DefaultHTTPTimeout,
			Sources: cli.EnvVars("HTTP_TIMEOUT"),
		},
		&cli.IntFlag{
			Name:    "max-steps",
			Usage:   "Node visits allowed per turn before the conversation is handed off",
			Value:   engine.DefaultMaxSteps,
			Sources: cli.EnvVars("MAX_STEPS"),
		},
		&cli.StringFlag{
			Name:    "fallback-message",
			Usage:   "Message sent when no flow matches; silence when empty",
			Sources: cli.EnvVars("FALLBACK_MESSAGE"),
		},
	}
}

// MessengerConfigFrom reads the Meta client configuration.
func MessengerConfigFrom(command *cli.Command) (meta.Config, error) {
	tokens, err := meta.ParsePageTokens(command.String("meta-page-tokens"))
	if err != nil {
		return meta.Config{}, err
	}

	return meta.Config{
		APIURL:     command.String("meta-api-url"),
		PageTokens: tokens,
	}, nil
}

// CollaboratorConfigFrom reads the executor collaborator configuration.
func CollaboratorConfigFrom(command *cli.Command) CollaboratorConfig {
	return CollaboratorConfig{
		AIAPIURL:       command.String("ai-api-url"),
		AIAPIKey:       command.String("ai-api-key"),
		AIDefaultModel: command.String("ai-default-model"),
		AIRetries:      command.Int("ai-retries"),
		AIBackoff:      command.Duration("ai-backoff"),
		HTTPTimeout:    command.Duration("http-timeout"),
	}
}

// EngineConfigFrom reads the engine configuration.
func EngineConfigFrom(command *cli.Command) engine.Config {
	config := engine.DefaultConfig()
	config.MaxSteps = command.Int("max-steps")
	config.FallbackMessage = command.String("fallback-message")

	return config
}

