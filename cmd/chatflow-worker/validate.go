package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dukex/chatflow/pkg/cmd"
	"github.com/dukex/chatflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	cli "github.com/urfave/cli/v3"
)

var (
	ErrInvalidFlows = errors.New("invalid flows found")
	ErrNoDocuments  = errors.New("at least one flow document is required")
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate flow documents (JSON or YAML)",
		ArgsUsage: "<file>...",
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := slog.With(
				"module", "chatflow-worker",
				"action", "validate",
			)

			registry := cmd.NewRegistry(logger, cmd.NewDependencies(logger, clockwork.NewRealClock(), cmd.CollaboratorConfig{}))
			flowValidator := services.NewValidator(validator.New(validator.WithRequiredStructEnabled()), registry)

			paths := command.Args().Slice()
			if len(paths) == 0 {
				return ErrNoDocuments
			}

			invalid := validateFiles(flowValidator, paths)
			if invalid > 0 {
				return fmt.Errorf("%w: %d of %d", ErrInvalidFlows, invalid, len(paths))
			}

			return nil
		},
	}
}

func validateFiles(flowValidator *services.Validator, paths []string) int {
	invalid := 0

	for _, path := range paths {
		problems := validateFile(flowValidator, path)
		if len(problems) == 0 {
			_, _ = fmt.Fprintf(os.Stdout, "✓ %s\n", path)

			continue
		}

		invalid++

		_, _ = fmt.Fprintf(os.Stdout, "✗ %s\n", path)
		for _, problem := range problems {
			_, _ = fmt.Fprintf(os.Stdout, "    - %s\n", problem)
		}
	}

	return invalid
}

func validateFile(flowValidator *services.Validator, path string) []string {
	format, err := services.FormatFromPath(path)
	if err != nil {
		return []string{err.Error()}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return []string{err.Error()}
	}

	flow, err := services.ParseFlow(data, format)
	if err == nil {
		// Documents without an id get one when they are imported.
		if flow.ID == "" {
			flow.ID = path
		}

		err = flowValidator.Validate(flow)
	}

	if err == nil {
		return nil
	}

	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Problems
	}

	return []string{err.Error()}
}

