package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"clinic-import/internal/config"
	"clinic-import/internal/models"
	"clinic-import/internal/repository"
	"clinic-import/internal/service"
	"clinic-import/internal/utils"
)

type ImportHandler struct {
	sessionRepo   *repository.ImportSessionRepository
	parserService *service.ParserService
	reportService *service.ReportService
	registry      *service.PipelineRegistry
	asynqClient   *asynq.Client
	redis         *redis.Client
	cfg           *config.Config
}

func NewImportHandler(
	sessionRepo *repository.ImportSessionRepository,
	parserService *service.ParserService,
	reportService *service.ReportService,
	registry *service.PipelineRegistry,
	asynqClient *asynq.Client,
	redisClient *redis.Client,
	cfg *config.Config,
) *ImportHandler {
	return &ImportHandler{
		sessionRepo:   sessionRepo,
		parserService: parserService,
		reportService: reportService,
		registry:      registry,
		asynqClient:   asynqClient,
		redis:         redisClient,
		cfg:           cfg,
	}
}

type mappingRequest struct {
	SourceColumn string `json:"source_column"`
	TargetField  string `json:"target_field"`
}

type updateMappingsRequest struct {
	Add    []mappingRequest `json:"add"`
	Remove []string         `json:"remove"`
}

type executeRequest struct {
	CreateMissingEntities bool `json:"create_missing_entities"`
}

// ImportTaskPayload is the asynq payload for import:execute.
type ImportTaskPayload struct {
	SessionID             int    `json:"session_id"`
	SessionCode           string `json:"session_code"`
	CreateMissingEntities bool   `json:"create_missing_entities"`
}

// Upload receives a tabular file, parses it and opens a new wizard session.
// Auto-detected mappings and a preview come back in the same response; when
// every required field is already mapped the wizard skips the manual mapping
// stage and lands on validation.
func (h *ImportHandler) Upload(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(int)
	tenantID := c.Locals("tenant_id").(int)

	dataType := models.TargetDataType(c.FormValue("data_type"))
	if !dataType.IsValid() {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "data_type must be one of patients, procedures, transactions", nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File is required", err)
	}

	ext := filepath.Ext(file.Filename)
	switch ext {
	case ".csv", ".xlsx", ".json":
	case ".xls":
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Legacy .xls files are not supported, save the file as .xlsx", nil)
	default:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Only .csv, .xlsx and .json files are allowed", nil)
	}

	if file.Size > int64(h.cfg.UploadMaxSize) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File size exceeds maximum limit", nil)
	}

	sessionCode := fmt.Sprintf("IMP-%s", uuid.New().String()[:8])
	filePath := filepath.Join(h.cfg.UploadPath, fmt.Sprintf("%s%s", sessionCode, ext))
	if err := c.SaveFile(file, filePath); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save file", err)
	}

	table, err := h.parserService.ParseFile(filePath)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse file", err)
	}

	pipeline, err := service.NewPipeline(dataType)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to open import pipeline", err)
	}
	if err := pipeline.AttachTable(table); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to load parsed file", err)
	}

	mappings := pipeline.Mappings()
	mappingsJSON, _ := json.Marshal(mappings)

	session := &models.ImportSession{
		SessionCode:  sessionCode,
		UserID:       userID,
		TenantID:     tenantID,
		DataType:     dataType,
		Filename:     file.Filename,
		FilePath:     filePath,
		Stage:        pipeline.Stage(),
		Status:       models.SessionStatusUploaded,
		TotalRows:    table.TotalRows,
		MappingsJSON: string(mappingsJSON),
	}
	if err := h.sessionRepo.Create(session); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create import session", err)
	}

	h.registry.Register(sessionCode, pipeline)

	return utils.SuccessResponse(c, "File uploaded successfully", fiber.Map{
		"session":        session,
		"headers":        table.Headers,
		"preview":        previewRows(table, h.cfg.PreviewRows),
		"total_rows":     table.TotalRows,
		"mappings":       mappings,
		"missing_fields": service.UnmappedRequiredFields(mappings, dataType),
		"stage":          pipeline.Stage(),
	})
}

// Proceed advances the wizard past the preview stage, skipping the manual
// mapping stage when auto-detection already covered every required field.
func (h *ImportHandler) Proceed(c *fiber.Ctx) error {
	session, pipeline, err := h.lookup(c)
	if err != nil {
		return err
	}

	stage, err := pipeline.ProceedFromPreview()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	h.persistStage(session, pipeline)

	return utils.SuccessResponse(c, "Pipeline advanced", fiber.Map{
		"stage":      stage,
		"validation": pipeline.Validation(),
	})
}

// GetSessions lists import sessions. Admins see every session; other users
// only their own.
func (h *ImportHandler) GetSessions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(int)
	role := c.Locals("role").(string)

	params := utils.GetPaginationParams(c)
	offset := utils.GetOffset(params.Page, params.Limit)

	filterUserID := userID
	if role == "admin" {
		filterUserID = 0
	}

	sessions, total, err := h.sessionRepo.GetSessions(params.Limit, offset, filterUserID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve sessions", err)
	}

	pagination := utils.CalculatePagination(params.Page, params.Limit, int64(total))
	return utils.PaginatedResponse(c, "Sessions retrieved successfully", fiber.Map{
		"sessions": sessions,
	}, pagination)
}

func (h *ImportHandler) GetSessionDetail(c *fiber.Ctx) error {
	session, pipeline, err := h.lookup(c)
	if err != nil {
		return err
	}

	data := fiber.Map{"session": session}
	data["stage"] = pipeline.Stage()
	data["mappings"] = pipeline.Mappings()
	data["validation"] = pipeline.Validation()
	data["result"] = pipeline.Result()
	return utils.SuccessResponse(c, "Session retrieved successfully", data)
}

// Preview returns the parsed headers and the first rows of the active table.
func (h *ImportHandler) Preview(c *fiber.Ctx) error {
	_, pipeline, err := h.lookup(c)
	if err != nil {
		return err
	}

	table := pipeline.Table()
	if table == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No file has been parsed for this session", nil)
	}

	return utils.SuccessResponse(c, "Preview retrieved successfully", fiber.Map{
		"headers":    table.Headers,
		"rows":       previewRows(table, h.cfg.PreviewRows),
		"total_rows": table.TotalRows,
	})
}

// UpdateMappings applies manual mapping edits with replace semantics and
// invalidates any previous validation result.
func (h *ImportHandler) UpdateMappings(c *fiber.Ctx) error {
	session, pipeline, err := h.lookup(c)
	if err != nil {
		return err
	}

	var req updateMappingsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	for _, target := range req.Remove {
		if err := pipeline.RemoveMapping(target); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
	}
	for _, m := range req.Add {
		if err := pipeline.AddMapping(m.SourceColumn, m.TargetField); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
	}

	h.persistMappings(session, pipeline)

	mappings := pipeline.Mappings()
	return utils.SuccessResponse(c, "Mappings updated", fiber.Map{
		"mappings":       mappings,
		"missing_fields": service.UnmappedRequiredFields(mappings, pipeline.DataType()),
		"stage":          pipeline.Stage(),
	})
}

// Redetect recomputes mappings from scratch, discarding manual edits.
func (h *ImportHandler) Redetect(c *fiber.Ctx) error {
	session, pipeline, err := h.lookup(c)
	if err != nil {
		return err
	}

	if err := pipeline.Redetect(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	h.persistMappings(session, pipeline)

	mappings := pipeline.Mappings()
	return utils.SuccessResponse(c, "Mappings re-detected", fiber.Map{
		"mappings":       mappings,
		"missing_fields": service.UnmappedRequiredFields(mappings, pipeline.DataType()),
	})
}

// Validate runs the validation engine over every row and returns the
// complete issue list, never a truncated one.
func (h *ImportHandler) Validate(c *fiber.Ctx) error {
	session, pipeline, err := h.lookup(c)
	if err != nil {
		return err
	}

	result, err := pipeline.RunValidation()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	session.Status = models.SessionStatusReady
	if !result.IsValid {
		session.Status = models.SessionStatusValidating
	}
	h.persistStage(session, pipeline)

	return utils.SuccessResponse(c, "Validation completed", result)
}

// Execute checks the import preconditions synchronously, before any I/O,
// and queues the background import task. Import is always user-triggered.
func (h *ImportHandler) Execute(c *fiber.Ctx) error {
	session, pipeline, err := h.lookup(c)
	if err != nil {
		return err
	}

	var req executeRequest
	_ = c.BodyParser(&req)

	validation := pipeline.Validation()
	if validation == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation has not been run for the current mappings", nil)
	}
	if !validation.IsValid {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			fmt.Sprintf("Validation reported %d errors; fix them before importing", len(validation.Errors)), nil)
	}
	if missing := service.UnmappedRequiredFields(pipeline.Mappings(), pipeline.DataType()); len(missing) > 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			fmt.Sprintf("Required fields are not mapped: %v", missing), nil)
	}
	if session.Status == models.SessionStatusImporting {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "An import is already in flight for this session", nil)
	}

	if h.asynqClient == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Background job processing is not available (Redis not connected)", nil)
	}

	session.Status = models.SessionStatusImporting
	session.Stage = models.StageImport
	if err := h.sessionRepo.Update(session); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update session", err)
	}

	payload, _ := json.Marshal(ImportTaskPayload{
		SessionID:             session.ID,
		SessionCode:           session.SessionCode,
		CreateMissingEntities: req.CreateMissingEntities,
	})
	info, err := h.asynqClient.Enqueue(asynq.NewTask("import:execute", payload))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to queue import task", err)
	}

	// Keep the live pipeline's stage in step with the session so detail
	// views report the running import.
	pipeline.MarkImporting()

	return utils.SuccessResponse(c, "Import started", fiber.Map{
		"job_id":  info.ID,
		"session": session,
	})
}

// Progress returns the live progress snapshot of a running import.
func (h *ImportHandler) Progress(c *fiber.Ctx) error {
	session, _, err := h.lookup(c)
	if err != nil {
		return err
	}

	if h.redis != nil {
		key := fmt.Sprintf("import:progress:%d", session.ID)
		raw, err := h.redis.Get(context.Background(), key).Result()
		if err == nil {
			var progress models.ImportProgress
			if json.Unmarshal([]byte(raw), &progress) == nil {
				return utils.SuccessResponse(c, "Progress retrieved", progress)
			}
		}
	}

	// No live snapshot: fall back to the persisted session counters.
	return utils.SuccessResponse(c, "Progress retrieved", fiber.Map{
		"total":      session.TotalRows,
		"successful": session.ImportedRows,
		"failed":     session.FailedRows,
		"status":     session.Status,
	})
}

// Cancel requests cancellation of a running import. The executor honors it
// at the next batch boundary.
func (h *ImportHandler) Cancel(c *fiber.Ctx) error {
	session, _, err := h.lookup(c)
	if err != nil {
		return err
	}

	if session.Status != models.SessionStatusImporting {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Session has no import in flight", nil)
	}
	if h.redis == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Cancellation requires Redis", nil)
	}

	key := fmt.Sprintf("import:cancel:%d", session.ID)
	if err := h.redis.Set(context.Background(), key, "1", time.Hour).Err(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to request cancellation", err)
	}

	return utils.SuccessResponse(c, "Cancellation requested", nil)
}

// Back navigates one wizard stage backward.
func (h *ImportHandler) Back(c *fiber.Ctx) error {
	session, pipeline, err := h.lookup(c)
	if err != nil {
		return err
	}

	stage, err := pipeline.Back()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	h.persistStage(session, pipeline)

	return utils.SuccessResponse(c, "Pipeline moved back", fiber.Map{"stage": stage})
}

// ValidationReport generates and downloads an Excel report of the latest
// validation run.
func (h *ImportHandler) ValidationReport(c *fiber.Ctx) error {
	session, pipeline, err := h.lookup(c)
	if err != nil {
		return err
	}

	result := pipeline.Validation()
	if result == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation has not been run for this session", nil)
	}

	fileName := fmt.Sprintf("validation_%s_%s.xlsx", session.SessionCode, time.Now().Format("20060102_150405"))
	reportPath := filepath.Join(h.cfg.ReportPath, fileName)
	if err := h.reportService.GenerateValidationReport(result, reportPath); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate report", err)
	}

	return c.Download(reportPath, fileName)
}

// Template downloads an upload template spreadsheet for a data type.
func (h *ImportHandler) Template(c *fiber.Ctx) error {
	dataType := models.TargetDataType(c.Params("dataType"))
	if !dataType.IsValid() {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown data type", nil)
	}

	fileName := fmt.Sprintf("template_%s.xlsx", dataType)
	path := filepath.Join(h.cfg.ReportPath, fileName)
	if err := h.reportService.GenerateTemplate(dataType, path); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate template", err)
	}

	return c.Download(path, fileName)
}

// lookup resolves the session row and its live pipeline from the :id param.
// Failures come back as *fiber.Error so callers can return them straight to
// the app error handler.
func (h *ImportHandler) lookup(c *fiber.Ctx) (*models.ImportSession, *service.Pipeline, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "Invalid session ID")
	}

	session, err := h.sessionRepo.GetByID(id)
	if err != nil {
		return nil, nil, fiber.NewError(fiber.StatusNotFound, "Session not found")
	}

	pipeline, err := h.registry.Get(session.SessionCode)
	if err != nil {
		// The pipeline lives in process memory; rebuild it from the stored
		// file and mappings after a restart.
		pipeline, err = h.rebuildPipeline(session)
		if err != nil {
			return nil, nil, fiber.NewError(fiber.StatusGone, "Import session is no longer active")
		}
		h.registry.Register(session.SessionCode, pipeline)
	}

	return session, pipeline, nil
}

// rebuildPipeline reconstructs a pipeline from the persisted session: the
// saved file is re-parsed and the stored mappings are re-applied. Validation
// state is not restored; the caller must re-run validation.
func (h *ImportHandler) rebuildPipeline(session *models.ImportSession) (*service.Pipeline, error) {
	pipeline, err := service.NewPipeline(session.DataType)
	if err != nil {
		return nil, err
	}

	table, err := h.parserService.ParseFile(session.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to re-parse stored file: %w", err)
	}
	if err := pipeline.AttachTable(table); err != nil {
		return nil, err
	}

	// AttachTable proposes fresh auto-detected mappings, but the persisted
	// set is authoritative after a restart: it carries the user's manual
	// edits, including deliberate removals. Clear the proposal and restore
	// exactly what was saved.
	for _, m := range pipeline.Mappings() {
		_ = pipeline.RemoveMapping(m.TargetField)
	}

	if session.MappingsJSON != "" {
		var stored []models.FieldMapping
		if err := json.Unmarshal([]byte(session.MappingsJSON), &stored); err != nil {
			return nil, fmt.Errorf("stored mappings are corrupt: %w", err)
		}
		for _, m := range stored {
			// Skip mappings orphaned by the re-parse.
			_ = pipeline.AddMapping(m.SourceColumn, m.TargetField)
		}
	}

	return pipeline, nil
}

func (h *ImportHandler) persistStage(session *models.ImportSession, pipeline *service.Pipeline) {
	session.Stage = pipeline.Stage()
	if err := h.sessionRepo.Update(session); err != nil {
		utils.GetLogger().WithError(err).Warn("failed to persist session stage")
	}
}

func (h *ImportHandler) persistMappings(session *models.ImportSession, pipeline *service.Pipeline) {
	mappingsJSON, _ := json.Marshal(pipeline.Mappings())
	session.MappingsJSON = string(mappingsJSON)
	h.persistStage(session, pipeline)
}

func previewRows(table *models.ParsedTable, limit int) []models.Row {
	if len(table.Rows) > limit {
		return table.Rows[:limit]
	}
	return table.Rows
}
