package dash

import (
	"SimonPaket/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DashService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewDashService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &DashService{config: cfg, pool: pool}
}

func (s *DashService) Name() string {
	return "dash"
}

func (s *DashService) Start() error {
	go StartDashService(s.pool, "6143")
	return nil
}

func (s *DashService) Stop() error {
	return nil
}
