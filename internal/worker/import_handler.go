package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"clinic-import/internal/config"
	"clinic-import/internal/models"
	"clinic-import/internal/repository"
	"clinic-import/internal/service"
	"clinic-import/internal/utils"
)

// cancelPollInterval is how often a running import checks the cancel flag.
const cancelPollInterval = time.Second

type ImportTaskHandler struct {
	db          *sqlx.DB
	redis       *redis.Client
	cfg         *config.Config
	sessionRepo *repository.ImportSessionRepository
	parser      *service.ParserService
}

func NewImportTaskHandler(db *sqlx.DB, redisClient *redis.Client, cfg *config.Config) *ImportTaskHandler {
	return &ImportTaskHandler{
		db:          db,
		redis:       redisClient,
		cfg:         cfg,
		sessionRepo: repository.NewImportSessionRepository(db),
		parser:      service.NewParserService(),
	}
}

type ImportTaskPayload struct {
	SessionID             int    `json:"session_id"`
	SessionCode           string `json:"session_code"`
	CreateMissingEntities bool   `json:"create_missing_entities"`
}

// Handle executes one queued import run. The worker is a separate process
// from the web app, so the pipeline state is rebuilt here from the persisted
// session: the stored file is re-parsed and the saved mappings re-validated
// before any row is written.
func (h *ImportTaskHandler) Handle(ctx context.Context, task *asynq.Task) error {
	var payload ImportTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	log := utils.GetLogger().WithField("session_code", payload.SessionCode)
	log.Info("starting import run")

	session, err := h.sessionRepo.GetByID(payload.SessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	switch session.Status {
	case models.SessionStatusCanceled, models.SessionStatusCompleted, models.SessionStatusFailed:
		log.WithField("status", session.Status).Info("session already settled, skipping")
		return nil
	}

	table, err := h.parser.ParseFile(session.FilePath)
	if err != nil {
		h.failSession(session, fmt.Sprintf("failed to re-parse stored file: %v", err))
		return fmt.Errorf("failed to re-parse stored file: %w", err)
	}

	var mappings []models.FieldMapping
	if err := json.Unmarshal([]byte(session.MappingsJSON), &mappings); err != nil {
		h.failSession(session, "stored mappings are corrupt")
		return fmt.Errorf("failed to unmarshal stored mappings: %w", err)
	}

	// Re-validate against the re-parsed table. The web process already gated
	// the run, but the file on disk is the source of truth here.
	validation := service.Validate(table.Rows, mappings, session.DataType)
	if !validation.IsValid {
		h.failSession(session, fmt.Sprintf("validation failed with %d errors", len(validation.Errors)))
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.watchCancelFlag(runCtx, cancel, session.ID)

	store := repository.NewRecordRepository(h.db, session.TenantID, session.SessionCode)
	importer := service.NewImporter(store)

	progressKey := fmt.Sprintf("import:progress:%d", session.ID)
	onProgress := func(p models.ImportProgress) {
		raw, err := json.Marshal(p)
		if err != nil {
			return
		}
		h.redis.Set(context.Background(), progressKey, raw, 24*time.Hour)
	}

	result := importer.Import(runCtx, table.Rows, mappings, session.DataType, models.ImportOptions{
		CreateMissingEntities: payload.CreateMissingEntities,
	}, onProgress)

	canceled := runCtx.Err() != nil && result.TotalProcessed < table.TotalRows

	session.ImportedRows = result.SuccessCount
	session.FailedRows = result.FailedCount
	session.Status = models.SessionStatusCompleted
	if canceled {
		session.Status = models.SessionStatusCanceled
	}
	if err := h.sessionRepo.Update(session); err != nil {
		log.WithError(err).Error("failed to persist final session state")
	}

	h.redis.Del(context.Background(), fmt.Sprintf("import:cancel:%d", session.ID))

	log.WithFields(map[string]interface{}{
		"processed": result.TotalProcessed,
		"succeeded": result.SuccessCount,
		"failed":    result.FailedCount,
		"canceled":  canceled,
	}).Info("import run finished")

	return nil
}

// watchCancelFlag polls the Redis cancel flag and cancels the run context
// when it appears. The importer honors the cancellation at the next batch
// boundary.
func (h *ImportTaskHandler) watchCancelFlag(ctx context.Context, cancel context.CancelFunc, sessionID int) {
	key := fmt.Sprintf("import:cancel:%d", sessionID)
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if exists, err := h.redis.Exists(ctx, key).Result(); err == nil && exists > 0 {
				cancel()
				return
			}
		}
	}
}

func (h *ImportTaskHandler) failSession(session *models.ImportSession, message string) {
	session.Status = models.SessionStatusFailed
	session.ErrorMessage = message
	if err := h.sessionRepo.Update(session); err != nil {
		utils.GetLogger().WithError(err).Error("failed to mark session as failed")
	}
}
