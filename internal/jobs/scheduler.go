package jobs

import (
	"fmt"
	"log"

	"SimonPaket/internal/logger"
	"SimonPaket/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CronService struct {
	config map[string]interface{}
	db     *pgxpool.Pool
}

func NewCronService(cfg map[string]interface{}, db *pgxpool.Pool) serviceiface.Service {
	return &CronService{
		config: cfg,
		db:     db,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	log.Println("Starting cron service...")

	recapConfig := NewDefaultRecapConfig()
	if s.config != nil {
		if schedule, ok := s.config["recap_schedule"].(string); ok && schedule != "" {
			recapConfig.Schedule = schedule
		}
		if tz, ok := s.config["timezone"].(string); ok && tz != "" {
			recapConfig.TimeZone = tz
		}
	}

	if err := RunRecapScheduler(recapConfig, s.db); err != nil {
		return fmt.Errorf("failed to start recap scheduler: %v", err)
	}

	logger.GlobalLogger.LogAudit("Cron service started with paket recap scheduler")
	log.Println("Cron service started — recap scheduled")
	return nil
}

func (s *CronService) Stop() error {
	return nil
}
