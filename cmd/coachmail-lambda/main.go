// Lambda entry for scheduled runs: an EventBridge rule invokes one
// correspondence pass per event.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/coachmail/coachmail/cmd/mainconfig"
	"github.com/coachmail/coachmail/internal/app/bootstrap"
	appconfig "github.com/coachmail/coachmail/internal/config"
	"github.com/coachmail/coachmail/internal/runlock"
	"github.com/coachmail/coachmail/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	engine, err := bootstrap.Build(context.Background(), cfg, mainconfig.LoadAWSConfig, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context) error {
		if engine.Lock != nil {
			if err := engine.Lock.Acquire(ctx); err != nil {
				if errors.Is(err, runlock.ErrHeld) {
					logger.Warn("another instance is processing this account, skipping invocation")
					return nil
				}
				return err
			}
			defer func() {
				if err := engine.Lock.Release(context.Background()); err != nil {
					logger.Error("failed to release run lock", "error", err)
				}
			}()
		}
		_, err := engine.Coordinator.Run(ctx)
		return err
	})
}
