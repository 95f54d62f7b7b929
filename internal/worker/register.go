package worker

import (
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"clinic-import/internal/config"
)

func RegisterHandlers(mux *asynq.ServeMux, db *sqlx.DB, redisClient *redis.Client, cfg *config.Config) {
	importHandler := NewImportTaskHandler(db, redisClient, cfg)
	mux.HandleFunc("import:execute", importHandler.Handle)
}
