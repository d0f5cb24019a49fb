package paket

import (
	"SimonPaket/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PaketService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewPaketService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &PaketService{config: cfg, pool: pool}
}

func (s *PaketService) Name() string {
	return "paket"
}

func (s *PaketService) Start() error {
	go StartPaketService(s.pool, "3143")
	return nil
}

func (s *PaketService) Stop() error {
	return nil
}
