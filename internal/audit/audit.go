// Package audit appends AuditLog rows for moderation and administrative
// actions, independent of the monetary LedgerEntry trail.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"adxchange/internal/apierr"
	"adxchange/internal/model"
)

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func (s *Service) Log(ctx context.Context, actorID, action, entityType, entityID string, metadata map[string]string) error {
	meta, _ := json.Marshal(metadata)
	_, err := s.pool.Exec(ctx, `
		insert into audit_logs (id, actor_id, action, entity_type, entity_id, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), actorID, action, entityType, entityID, meta, time.Now().UTC())
	if err != nil {
		return apierr.Internal("append audit log", err)
	}
	return nil
}

func (s *Service) ListByEntity(ctx context.Context, entityType, entityID string) ([]model.AuditLog, error) {
	rows, err := s.pool.Query(ctx, `
		select id, actor_id, action, entity_type, entity_id, metadata, created_at
		from audit_logs where entity_type = $1 and entity_id = $2 order by created_at desc`, entityType, entityID)
	if err != nil {
		return nil, apierr.Internal("list audit logs", err)
	}
	defer rows.Close()

	var out []model.AuditLog
	for rows.Next() {
		var a model.AuditLog
		var meta []byte
		if err := rows.Scan(&a.ID, &a.ActorID, &a.Action, &a.EntityType, &a.EntityID, &meta, &a.CreatedAt); err != nil {
			return nil, apierr.Internal("scan audit log", err)
		}
		_ = json.Unmarshal(meta, &a.Metadata)
		out = append(out, a)
	}
	return out, rows.Err()
}
