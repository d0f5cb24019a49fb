package jobs

import (
	"context"
	"fmt"
	"time"

	"SimonPaket/api/audit"
	"SimonPaket/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

type RecapConfig struct {
	Schedule string
	TimeZone string
}

func NewDefaultRecapConfig() *RecapConfig {
	return &RecapConfig{
		Schedule: "0 1 * * *",
		TimeZone: "Asia/Jakarta",
	}
}

// RunRecapScheduler registers the nightly recap: per-year paket totals are
// rolled up and written to the audit trail so the numbers are traceable
// over time.
func RunRecapScheduler(cfg *RecapConfig, pool *pgxpool.Pool) error {
	if cfg == nil {
		cfg = NewDefaultRecapConfig()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 1 * * *"
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "Asia/Jakarta"
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid timezone for recap scheduler: %v", err)
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Schedule, func() {
		logger.GlobalLogger.LogAudit(fmt.Sprintf("Running paket recap at %s", time.Now().In(loc)))
		if err := runRecap(pool); err != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf("Paket recap failed: %v", err))
		} else {
			logger.GlobalLogger.LogAudit("Paket recap completed at " + time.Now().In(loc).String())
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule recap job: %v", err)
	}
	c.Start()
	return nil
}

func runRecap(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rows, err := pool.Query(ctx, `
		SELECT tahun, COUNT(*),
		       COALESCE(SUM(pagu), 0), COALESCE(SUM(nilai), 0),
		       COALESCE(SUM(nilai_realisasi), 0), COALESCE(AVG(progres), 0)
		FROM paket
		GROUP BY tahun
		ORDER BY tahun`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tahun, count           int
			pagu, nilai, realisasi decimal.Decimal
			avgProgres             float64
		)
		if err := rows.Scan(&tahun, &count, &pagu, &nilai, &realisasi, &avgProgres); err != nil {
			return err
		}
		audit.Log(pool, audit.Entry{
			UserID:   "system",
			Action:   "DAILY_RECAP",
			Entity:   "Paket",
			EntityID: fmt.Sprintf("%d", tahun),
			Details: map[string]interface{}{
				"tahun":          tahun,
				"count":          count,
				"pagu":           pagu,
				"nilai":          nilai,
				"nilaiRealisasi": realisasi,
				"avgProgres":     avgProgres,
			},
		})
	}
	return rows.Err()
}
