// Command scheduler runs one pass of the notification engine's periodic
// work: it drains due scheduled records, emits activity digests and sweeps
// stale push endpoints. It is meant to be invoked by cron; overlapping runs
// are safe because due records are claimed with a lock.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/acornstash/notifier/pkg/config"
	"github.com/acornstash/notifier/pkg/dispatch"
	"github.com/acornstash/notifier/pkg/logger"
	"github.com/acornstash/notifier/pkg/prefs"
	"github.com/acornstash/notifier/pkg/pushsub"
	"github.com/acornstash/notifier/pkg/schedule"
	"github.com/acornstash/notifier/pkg/scheduler"
	"github.com/acornstash/notifier/pkg/sender/mail"
	"github.com/acornstash/notifier/pkg/sender/push"
	"github.com/acornstash/notifier/pkg/sender/realtime"
	storagepg "github.com/acornstash/notifier/pkg/storage/pg"
	storageredis "github.com/acornstash/notifier/pkg/storage/redis"
)

type schedulerConfig struct {
	BatchSize   int           `env:"SCHEDULER_BATCH_SIZE" envDefault:"50"`
	LockFor     time.Duration `env:"SCHEDULER_LOCK_FOR" envDefault:"2m"`
	EndpointTTL time.Duration `env:"SCHEDULER_ENDPOINT_TTL" envDefault:"720h"` // 30 days

	DigestDailyHour  int          `env:"DIGEST_DAILY_HOUR" envDefault:"18"`
	DigestWeeklyDay  time.Weekday `env:"DIGEST_WEEKLY_DAY" envDefault:"0"` // Sunday
	DigestWeeklyHour int          `env:"DIGEST_WEEKLY_HOUR" envDefault:"18"`

	// MailDevDir switches email delivery to on-disk files for development.
	MailDevDir string `env:"MAIL_DEV_DIR"`
	// FCMCredentialsFile enables the push channel when set.
	FCMCredentialsFile string `env:"FCM_CREDENTIALS_FILE"`

	RunMigrations bool `env:"RUN_MIGRATIONS" envDefault:"false"`
}

func main() {
	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.NewFromConfig(logCfg, logger.WithAttr(logger.Component("scheduler")))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("scheduler pass failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg schedulerConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}
	var pgCfg storagepg.Config
	if err := config.Load(&pgCfg); err != nil {
		return err
	}
	var redisCfg storageredis.Config
	if err := config.Load(&redisCfg); err != nil {
		return err
	}

	pool, err := storagepg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := storagepg.Migrate(ctx, pool, pgCfg); err != nil {
			return err
		}
	}

	redisClient, err := storageredis.Connect(ctx, redisCfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	records := storagepg.NewRecordStore(pool)
	resolver := prefs.NewResolver(storagepg.NewPrefsStore(pool))
	registry := pushsub.NewRegistry(storagepg.NewPushEndpointStore(pool), pushsub.WithLogger(log))

	collab, err := buildCollaborators(ctx, cfg, redisClient, pool)
	if err != nil {
		return err
	}

	coordinator, err := dispatch.NewCoordinator(records, resolver, registry, collab,
		dispatch.WithLogger(log),
	)
	if err != nil {
		return err
	}

	reprocessor, err := scheduler.NewReprocessor(records, coordinator,
		scheduler.WithReprocessorLogger(log),
		scheduler.WithBatchSize(cfg.BatchSize),
		scheduler.WithLockFor(cfg.LockFor),
	)
	if err != nil {
		return err
	}
	dispatched, err := reprocessor.Run(ctx)
	if err != nil {
		return fmt.Errorf("reprocess due records: %w", err)
	}

	emitter, err := scheduler.NewDigestEmitter(coordinator, resolver, storagepg.NewActivityStore(pool), records,
		scheduler.WithDigestLogger(log),
		scheduler.WithCadence(prefs.DigestDaily, schedule.DailyAt(cfg.DigestDailyHour, 0)),
		scheduler.WithCadence(prefs.DigestWeekly, schedule.WeeklyOn(cfg.DigestWeeklyDay, cfg.DigestWeeklyHour, 0)),
	)
	if err != nil {
		return err
	}
	digests, err := emitter.Run(ctx)
	if err != nil {
		return fmt.Errorf("emit digests: %w", err)
	}

	swept, err := registry.Sweep(ctx, cfg.EndpointTTL)
	if err != nil {
		return fmt.Errorf("sweep push endpoints: %w", err)
	}

	log.InfoContext(ctx, "scheduler pass complete",
		slog.Int("records_dispatched", dispatched),
		slog.Int("digests_emitted", digests),
		slog.Int("endpoints_purged", swept),
	)
	return nil
}

func buildCollaborators(ctx context.Context, cfg schedulerConfig, redisClient *redis.Client, pool *pgxpool.Pool) (dispatch.Collaborators, error) {
	broadcaster, err := realtime.NewRedisBroadcaster(redisClient)
	if err != nil {
		return dispatch.Collaborators{}, err
	}

	collab := dispatch.Collaborators{
		Realtime:  broadcaster,
		Directory: storagepg.NewUserDirectory(pool),
	}

	if cfg.FCMCredentialsFile != "" {
		sender, err := push.NewFCMSender(ctx, push.Config{CredentialsFile: cfg.FCMCredentialsFile})
		if err != nil {
			return dispatch.Collaborators{}, fmt.Errorf("init fcm sender: %w", err)
		}
		collab.Push = sender
	}

	if cfg.MailDevDir != "" {
		collab.Mail = mail.NewDevSender(cfg.MailDevDir)
	} else {
		var mailCfg mail.Config
		if err := config.Load(&mailCfg); err != nil {
			return dispatch.Collaborators{}, err
		}
		sender, err := mail.NewPostmarkSender(mailCfg)
		if err != nil {
			return dispatch.Collaborators{}, err
		}
		collab.Mail = sender
	}
	return collab, nil
}
