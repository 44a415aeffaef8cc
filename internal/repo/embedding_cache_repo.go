package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/persona/internal/model"
)

// EmbeddingCacheRepo persists embeddings in the worker's local postgres,
// so a crash or redeploy never re-bills an upstream embedding call for
// content the worker already saw.
type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

func (r *EmbeddingCacheRepo) Lookup(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT embedding FROM embedding_cache WHERE model_name = $1 AND task_type = $2 AND content_hash = $3`,
		modelName, taskType, contentHash)
	var vec pgvector.Vector
	switch err := row.Scan(&vec); err {
	case nil:
		return vec.Slice(), true, nil
	case sql.ErrNoRows:
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// Store upserts; re-embedding the same content under a newer model run
// just refreshes the row.
func (r *EmbeddingCacheRepo) Store(ctx context.Context, item *model.CachedEmbedding) error {
	ctime := item.Ctime
	if ctime == 0 {
		ctime = time.Now().Unix()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO embedding_cache (model_name, task_type, content_hash, embedding, ctime)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (model_name, task_type, content_hash)
		 DO UPDATE SET embedding = EXCLUDED.embedding, ctime = EXCLUDED.ctime`,
		item.ModelName, item.TaskType, item.ContentHash, pgvector.NewVector(item.Values), ctime)
	return err
}

// PurgeOlderThan removes rows created before cutoff and reports how many
// went away.
func (r *EmbeddingCacheRepo) PurgeOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM embedding_cache WHERE ctime < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
