package sqlite

import (
	"context"
	"fmt"
	"time"

	"zhatMod/internal/domain"
)

const defaultLogLimit = 50

func (s *Store) RecordModerationAction(ctx context.Context, rec *domain.ModerationRecord) error {
	if rec == nil {
		return fmt.Errorf("sqlite: moderation record nil")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	const stmt = `
INSERT INTO moderation_log (command, trigger_token, args, invoker, platform, success, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`
	res, err := s.db.ExecContext(ctx, stmt,
		rec.Command,
		rec.Trigger,
		rec.Args,
		rec.Invoker,
		string(rec.Platform),
		rec.Success,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: record moderation action: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// ListModerationActions returns the newest records first.
func (s *Store) ListModerationActions(ctx context.Context, limit int) ([]*domain.ModerationRecord, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}

	const query = `
SELECT id, command, trigger_token, args, invoker, platform, success, created_at
FROM moderation_log
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list moderation log: %w", err)
	}
	defer rows.Close()

	var out []*domain.ModerationRecord
	for rows.Next() {
		var rec domain.ModerationRecord
		var platform string
		if err := rows.Scan(&rec.ID, &rec.Command, &rec.Trigger, &rec.Args, &rec.Invoker, &platform, &rec.Success, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan moderation log: %w", err)
		}
		rec.Platform = domain.Platform(platform)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: moderation log rows: %w", err)
	}
	return out, nil
}

var _ domain.ModerationLogRepository = (*Store)(nil)
