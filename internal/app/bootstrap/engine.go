// Package bootstrap wires configuration into a runnable engine so the
// one-shot binary and the Lambda entry share the same construction path.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/coachmail/coachmail/internal/archive"
	"github.com/coachmail/coachmail/internal/booking"
	appconfig "github.com/coachmail/coachmail/internal/config"
	"github.com/coachmail/coachmail/internal/gcal"
	"github.com/coachmail/coachmail/internal/gmail"
	"github.com/coachmail/coachmail/internal/ledger"
	"github.com/coachmail/coachmail/internal/notify"
	"github.com/coachmail/coachmail/internal/observability/metrics"
	"github.com/coachmail/coachmail/internal/retry"
	"github.com/coachmail/coachmail/internal/runlock"
	"github.com/coachmail/coachmail/internal/scheduler"
	"github.com/coachmail/coachmail/internal/slots"
	"github.com/coachmail/coachmail/internal/timeparse"
	"github.com/coachmail/coachmail/pkg/logging"
)

// Engine is a fully wired coordinator plus the shared resources it runs
// with.
type Engine struct {
	Coordinator *scheduler.Coordinator
	Lock        *runlock.Lock
	Registry    *prometheus.Registry
	Metrics     *metrics.RunMetrics

	pgPool *pgxpool.Pool
	redis  *redis.Client
}

// AWSConfigLoader builds the AWS SDK configuration; cmd/mainconfig provides
// the production one. Keeping it injectable avoids touching AWS when
// neither the archive mirror nor SES alerts are configured.
type AWSConfigLoader func(ctx context.Context, cfg *appconfig.Config) (aws.Config, error)

// Build constructs the engine from configuration. The returned Engine must
// be Closed after use.
func Build(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (*Engine, error) {
	if strings.TrimSpace(cfg.UserEmail) == "" {
		return nil, errors.New("bootstrap: USER_EMAIL is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	loc := timeparse.Location(cfg.Timezone)
	locale, err := appconfig.LoadLocale(cfg.LocalePath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	engine := &Engine{Registry: prometheus.NewRegistry()}
	engine.Metrics = metrics.NewRunMetrics(engine.Registry)

	policy := retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		Retryable:   retry.TransientGoogleAPI,
		Logger:      logger,
		OnRetry:     engine.Metrics.ObserveRetry,
	}

	gmailSvc, err := gmail.NewService(ctx, cfg.GoogleCredentialsPath, cfg.GoogleTokenPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	mail := gmail.NewClient(gmailSvc, policy, loc, logger)

	calSvc, err := gcal.NewService(ctx, cfg.GoogleCredentialsPath, cfg.GoogleTokenPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	cal := gcal.NewClient(calSvc, "", policy, loc, logger)

	store, err := engine.buildLedgerStore(ctx, cfg, loc, logger)
	if err != nil {
		return nil, err
	}

	mirror, alerts, err := engine.buildAWS(ctx, cfg, loadAWS, logger)
	if err != nil {
		return nil, err
	}
	archiver := archive.New(cfg.ArchiveDir(), mirror, logger)
	operator := notify.NewOperator(alerts, cfg.OperatorEmail, logger)

	formatter := slots.NewFormatter(locale.SlotTemplate, locale.Weekdays)
	booker := booking.New(cal, mail, formatter, locale, cfg.OfferMarker, logger)

	if strings.TrimSpace(cfg.RedisAddr) != "" {
		engine.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		engine.Lock = runlock.New(engine.redis, cfg.UserEmail, uuid.NewString(), cfg.RunLockTTL, logger)
	}

	engine.Coordinator = scheduler.New(
		cfg,
		locale,
		mail,
		cal,
		booker,
		ledger.New(store, logger),
		archiver,
		operator,
		engine.Metrics,
		logger,
	)
	return engine, nil
}

func (e *Engine) buildLedgerStore(ctx context.Context, cfg *appconfig.Config, loc *time.Location, logger *logging.Logger) (ledger.Store, error) {
	switch cfg.LedgerDriver {
	case "", "file":
		return ledger.NewFileStore(cfg.LedgerPath(), loc, logger), nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("bootstrap: DATABASE_URL is required for the postgres ledger")
		}
		pool, err := ledger.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		e.pgPool = pool
		return ledger.NewPGStore(pool, loc), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown ledger driver %q", cfg.LedgerDriver)
	}
}

// buildAWS wires the S3 archive mirror and the alert sender. AWS is only
// touched when something actually needs it.
func (e *Engine) buildAWS(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (*archive.Mirror, notify.EmailSender, error) {
	needsAWS := cfg.ArchiveS3Bucket != "" || cfg.SESFromEmail != ""
	var mirror *archive.Mirror
	var alerts notify.EmailSender

	if needsAWS && loadAWS != nil {
		awsCfg, err := loadAWS(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		if cfg.ArchiveS3Bucket != "" {
			mirror = archive.NewMirror(s3.NewFromConfig(awsCfg), cfg.ArchiveS3Bucket, cfg.UserEmail+"/mails")
		}
		if cfg.SESFromEmail != "" {
			alerts = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.SESFromEmail, cfg.SESFromName, logger)
		}
	}
	if alerts == nil && cfg.SendGridAPIKey != "" {
		alerts = notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, logger)
	}
	if alerts == nil {
		alerts = notify.NewStubSender(logger)
	}
	return mirror, alerts, nil
}

// Close releases pooled resources.
func (e *Engine) Close() {
	if e.pgPool != nil {
		e.pgPool.Close()
	}
	if e.redis != nil {
		_ = e.redis.Close()
	}
}
