package handlers

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/revoice/internal/audio"
	"github.com/codebuildervaibhav/revoice/internal/pipeline"
)

// UploadHandler starts sessions from uploaded recordings.
type UploadHandler struct {
	svc       *pipeline.Service
	tempDir   string
	maxSizeMB int
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(svc *pipeline.Service, tempDir string, maxSizeMB int) *UploadHandler {
	return &UploadHandler{
		svc:       svc,
		tempDir:   tempDir,
		maxSizeMB: maxSizeMB,
	}
}

// Handle processes the upload request
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "No file uploaded", "ERR_NO_FILE")
	}

	name := c.FormValue("name")
	if name == "" {
		name = "untitled"
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if h.maxSizeMB > 0 && file.Size > maxSize {
		return badRequest(c, fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB), "ERR_FILE_TOO_LARGE")
	}

	if !audio.ValidateAudioFormat(file.Filename) {
		return badRequest(c, "Unsupported audio format", "ERR_INVALID_FORMAT")
	}

	tempPath := filepath.Join(h.tempDir, uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, tempPath); err != nil {
		log.Printf("Failed to save uploaded file: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save file",
			"code":  "ERR_SAVE_FAILED",
		})
	}

	sess, err := h.svc.Ingest(c.UserContext(), name, tempPath)
	if err != nil {
		return sendError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": sess.ID,
		"message":    "File uploaded and preprocessed successfully",
		"session":    sess.Info(),
	})
}
