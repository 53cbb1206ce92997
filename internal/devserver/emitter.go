package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/telhawk-systems/console/common/logging"
	"github.com/telhawk-systems/console/common/messaging"
	"github.com/telhawk-systems/console/internal/seeder"
)

const logsResource = "logs"

// EmitLogs appends a generated log row to the logs dataset every interval
// and publishes it on the row's per-tenant subject. It returns when ctx is
// done.
func (s *Server) EmitLogs(ctx context.Context, pub messaging.Publisher, baseSubject string, gen *seeder.Generator, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("emit logs: interval must be positive, got %s", interval)
	}
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			row := gen.LogAt(now)
			s.AppendRow(logsResource, row)
			if pub == nil {
				continue
			}
			if err := s.publishLog(ctx, pub, baseSubject, row); err != nil {
				s.logger.Warn("failed to publish log row", logging.Error(err))
			}
		}
	}
}

func (s *Server) publishLog(ctx context.Context, pub messaging.Publisher, baseSubject string, row map[string]any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode log row: %w", err)
	}
	tenant, _ := row["tenant_id"].(string)
	return pub.Publish(ctx, messaging.LogSubject(baseSubject, tenant), data)
}
