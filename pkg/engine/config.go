package engine

import "time"

const (
	DefaultMaxSteps         = 100
	DefaultHTTPTimeout      = 10 * time.Second
	DefaultAIRetries        = 1
	DefaultAIBackoff        = 500 * time.Millisecond
	DefaultAIFailureMessage = "Sorry, something went wrong on our side. A member of our team will follow up shortly."
)

// Config holds the engine knobs.
type Config struct {
	// MaxSteps is the per-turn ceiling of visited nodes.
	MaxSteps int

	// FallbackMessage is sent when nothing matches and no flow is running.
	// Empty means silence.
	FallbackMessage string

	// AIFailureMessage is the apology sent when an ai_node call is exhausted.
	AIFailureMessage string
}

func DefaultConfig() Config {
	return Config{
		MaxSteps:         DefaultMaxSteps,
		AIFailureMessage: DefaultAIFailureMessage,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}

	return c
}
