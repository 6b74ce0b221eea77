package health

import (
	"context"
	"database/sql"
	"time"

	"quality-backend/internal/shared/metrics"
)

const pingTimeout = 2 * time.Second

// Report is the health payload.
type Report struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
	Queue    string `json:"queue"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB           *sql.DB
	QueueBackend string
}

// NewService constructs a new health service. db may be nil when the
// process runs on in-memory repositories.
func NewService(db *sql.DB, queueBackend string) *Service {
	return &Service{DB: db, QueueBackend: queueBackend}
}

// Check pings the database when one is configured.
func (s *Service) Check(ctx context.Context) Report {
	report := Report{OK: true, Database: "memory", Queue: s.QueueBackend}
	if report.Queue == "" {
		report.Queue = "none"
	}
	if s.DB == nil {
		return report
	}
	defer metrics.ObserveDependency(metrics.DependencyDB, "ping", time.Now())
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		report.OK = false
		report.Database = "unreachable"
		return report
	}
	report.Database = "ok"
	return report
}
