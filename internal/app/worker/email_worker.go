package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"smarttrack/internal/app/service"
	"smarttrack/internal/common/logger"
	"smarttrack/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

// Sender delivers a rendered email. Satisfied by platform/mailer.Mailer.
type Sender interface {
	Send(to, subject, body string) error
}

// EmailWorker drains the welcome-email queue. Delivery is best-effort:
// a failed send is logged and dropped, never retried or surfaced.
type EmailWorker struct {
	rdb    *redis.Client
	sender Sender
	log    *slog.Logger
}

func NewEmailWorker(rdb *redis.Client, sender Sender, log *slog.Logger) *EmailWorker {
	return &EmailWorker{rdb: rdb, sender: sender, log: log}
}

func (w *EmailWorker) Start(ctx context.Context) {
	log := w.log.With(slog.String("op", "EmailWorker.Start"))
	log.Info("email worker started", slog.String("queue", config.AppConfig.EmailQueueName))

	for {
		select {
		case <-ctx.Done():
			log.Info("email worker stopping")
			return
		default:
			// Blocking pop from the redis queue
			result, err := w.rdb.BRPop(ctx, 0*time.Second, config.AppConfig.EmailQueueName).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					time.Sleep(1 * time.Second)
					continue
				}
				log.Error("failed to pop from email queue", logger.Err(err))
				time.Sleep(5 * time.Second)
				continue
			}

			// result is [queueName, value]
			if len(result) < 2 || result[1] == "" {
				continue
			}
			w.process(result[1])
		}
	}
}

func (w *EmailWorker) process(payload string) {
	log := w.log.With(slog.String("op", "EmailWorker.process"))

	var job service.WelcomeEmailJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		log.Error("failed to decode welcome email job", logger.Err(err))
		return
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nWelcome to SmartTrack! Your account is ready.\n\nLog in at %s to start tracking your applications.\n",
		job.Name, config.AppConfig.ClientURL+"/login",
	)
	if err := w.sender.Send(job.Email, "Welcome to SmartTrack!", body); err != nil {
		log.Error("failed to send welcome email", slog.String("email", job.Email), logger.Err(err))
		return
	}
	log.Info("welcome email sent", slog.String("email", job.Email))
}
