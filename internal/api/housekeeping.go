package api

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// PruneRefreshTokens deletes refresh tokens that are revoked or expired as
// of now and returns how many were removed.
func PruneRefreshTokens(ctx context.Context, db *sql.DB, now time.Time, log *zap.Logger) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT "+refreshTokenColumns+" FROM refresh_tokens")
	if err != nil {
		return 0, err
	}

	ids := []int{}
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		if t.usableAt(now) != nil {
			ids = append(ids, t.ID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		return 0, tx.Commit()
	}

	deleteStmt, err := tx.PrepareContext(ctx, "DELETE FROM refresh_tokens WHERE id = ?")
	if err != nil {
		return 0, err
	}
	defer deleteStmt.Close()

	for _, id := range ids {
		if _, err := deleteStmt.ExecContext(ctx, id); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	log.Info("pruned refresh tokens", zap.Int("count", len(ids)))
	return len(ids), nil
}
