package opd

import (
	"SimonPaket/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type OpdService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewOpdService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &OpdService{config: cfg, pool: pool}
}

func (s *OpdService) Name() string {
	return "opd"
}

func (s *OpdService) Start() error {
	go StartOpdService(s.pool, "4143")
	return nil
}

func (s *OpdService) Stop() error {
	return nil
}
