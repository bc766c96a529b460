package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/chatflow/pkg/clients/meta"
	"github.com/dukex/chatflow/pkg/cmd"
	"github.com/dukex/chatflow/pkg/engine"
	"github.com/dukex/chatflow/pkg/log"
	"github.com/dukex/chatflow/pkg/web"
	"github.com/jonboulle/clockwork"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "meta-verify-token",
			Usage:   "Token Meta sends when subscribing the webhook",
			Sources: cli.EnvVars("META_VERIFY_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "meta-app-secret",
			Usage:   "App secret used to check X-Hub-Signature-256; unchecked when empty",
			Sources: cli.EnvVars("META_APP_SECRET"),
		},
	}
	flags = append(flags, cmd.CommonFlags()...)
	flags = append(flags, cmd.MessengerFlags()...)
	flags = append(flags, cmd.EngineFlags()...)

	command := &cli.Command{
		Name:                  "chatflow-api",
		Usage:                 "Receive Meta webhooks and manage flows",
		EnableShellCompletion: true,
		Flags:                 flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("chatflow-api")

			logger.InfoContext(ctx, "Initializing Chatflow API")

			clock := clockwork.NewRealClock()
			registry := cmd.NewRegistry(logger, cmd.NewDependencies(logger, clock, cmd.CollaboratorConfigFrom(command)))

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to open persistence: %w", err)
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "chatflow-api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			locker, closeLocker, err := cmd.NewLocker(command.String("redis-url"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := closeLocker(); err != nil {
					logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
				}
			}()

			messengerConfig, err := cmd.MessengerConfigFrom(command)
			if err != nil {
				return err
			}

			// Inspection and reset only; turns run in the workers.
			conversations := engine.New(logger, engine.Options{
				Persistence: persistence,
				Executors:   registry,
				Messenger:   meta.NewClient(logger, messengerConfig),
				Locker:      locker,
				Publisher:   eventBus,
				Clock:       clock,
				Config:      cmd.EngineConfigFrom(command),
				WorkerID:    "chatflow-api",
			})

			api := NewAPI(
				logger,
				persistence,
				registry,
				eventBus,
				conversations,
				web.WebhookConfig{
					VerifyToken: command.String("meta-verify-token"),
					AppSecret:   command.String("meta-app-secret"),
				},
			)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
