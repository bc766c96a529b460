package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/chatflow/pkg/clients/meta"
	"github.com/dukex/chatflow/pkg/cmd"
	"github.com/dukex/chatflow/pkg/delay"
	"github.com/dukex/chatflow/pkg/dispatch"
	"github.com/dukex/chatflow/pkg/engine"
	"github.com/dukex/chatflow/pkg/log"
	"github.com/dukex/chatflow/pkg/otelhelper"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	cli "github.com/urfave/cli/v3"
)

const tracerFlushTimeout = 5 * time.Second

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Value:   "",
			Sources: cli.EnvVars("WORKER_ID"),
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "Dispatch shards; turns of one conversation always run on the same shard",
			Value:   dispatch.DefaultShards,
			Sources: cli.EnvVars("WORKERS"),
		},
		&cli.StringFlag{
			Name:    "delay-poll-spec",
			Usage:   "Cron spec of the delayed resumption poller",
			Value:   delay.DefaultPollSpec,
			Sources: cli.EnvVars("DELAY_POLL_SPEC"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export OpenTelemetry spans over OTLP/HTTP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	}
	flags = append(flags, cmd.CommonFlags()...)
	flags = append(flags, cmd.MessengerFlags()...)
	flags = append(flags, cmd.EngineFlags()...)

	command := &cli.Command{
		Name:                  "chatflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Run conversation flows for inbound messages and fired delays",
		Flags:                 flags,
		Commands: []*cli.Command{
			NewValidateCommand(),
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithWorker(log.WithModule("chatflow-worker"), workerID)

			logger.InfoContext(ctx, "Initializing Chatflow Worker")

			clock := clockwork.NewRealClock()

			tracer := otelhelper.NoopTracer()
			if command.Bool("tracing") {
				var err error

				var shutdown func(context.Context) error

				tracer, shutdown, err = otelhelper.NewTracer(ctx, "chatflow-worker")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tracerFlushTimeout)
					defer cancel()

					if err := shutdown(flushCtx); err != nil {
						logger.ErrorContext(ctx, "Failed to flush traces", "error", err)
					}
				}()
			}

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

			eventBus := cmd.NewEventBus(command.String("event-bus"), "chatflow-worker", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
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

			flowEngine := engine.New(logger, engine.Options{
				Persistence: persistence,
				Executors:   registry,
				Messenger:   meta.NewClient(logger, messengerConfig),
				Locker:      locker,
				Publisher:   eventBus,
				Clock:       clock,
				Tracer:      tracer,
				Config:      cmd.EngineConfigFrom(command),
				WorkerID:    workerID,
			})

			pollerConfig := delay.DefaultPollerConfig()
			pollerConfig.PollSpec = command.String("delay-poll-spec")

			worker := NewWorkerManager(
				workerID,
				logger,
				flowEngine,
				eventBus,
				dispatch.NewPool(logger, command.Int("workers"), dispatch.DefaultQueueDepth),
				persistence.DelayRepository(),
				clock,
				pollerConfig,
			)

			runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = worker.Start(runCtx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
