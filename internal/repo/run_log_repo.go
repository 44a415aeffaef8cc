package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/persona/internal/model"
	"github.com/xxxsen/persona/internal/pkg/dbutil"
)

type RunLogRepo struct {
	db *sql.DB
}

func NewRunLogRepo(db *sql.DB) *RunLogRepo {
	return &RunLogRepo{db: db}
}

func (r *RunLogRepo) Insert(ctx context.Context, item *model.RunLog) error {
	data := map[string]interface{}{
		"started_at":   item.StartedAt,
		"finished_at":  item.FinishedAt,
		"users_total":  item.UsersTotal,
		"users_failed": item.UsersFailed,
	}
	sqlStr, args, err := builder.BuildInsert("run_log", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *RunLogRepo) ListRecent(ctx context.Context, limit int) ([]model.RunLog, error) {
	where := map[string]interface{}{
		"_orderby": "started_at desc",
		"_limit":   []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("run_log",
		where, []string{"id", "started_at", "finished_at", "users_total", "users_failed"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.RunLog
	for rows.Next() {
		var item model.RunLog
		if err := rows.Scan(&item.ID, &item.StartedAt, &item.FinishedAt, &item.UsersTotal, &item.UsersFailed); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}
