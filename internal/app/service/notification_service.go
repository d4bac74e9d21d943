package service

import (
	"context"
	"encoding/json"
	"fmt"

	"smarttrack/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

// WelcomeEmailJob is the payload pushed onto the redis queue for the
// email worker.
type WelcomeEmailJob struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type NotificationService struct {
	rdb *redis.Client
}

func NewNotificationService(rdb *redis.Client) *NotificationService {
	return &NotificationService{rdb: rdb}
}

func (s *NotificationService) EnqueueWelcome(ctx context.Context, email, name string) error {
	payload, err := json.Marshal(WelcomeEmailJob{Email: email, Name: name})
	if err != nil {
		return fmt.Errorf("NotificationService.EnqueueWelcome marshal: %w", err)
	}
	if err := s.rdb.LPush(ctx, config.AppConfig.EmailQueueName, payload).Err(); err != nil {
		return fmt.Errorf("NotificationService.EnqueueWelcome push: %w", err)
	}
	return nil
}
