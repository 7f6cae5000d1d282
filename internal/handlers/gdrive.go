package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/revoice/internal/pipeline"
)

// GDriveHandler starts sessions from Google Drive share links.
type GDriveHandler struct {
	svc         *pipeline.Service
	tempDir     string
	client      *http.Client
	downloadURL string
}

// NewGDriveHandler creates a new Google Drive handler
func NewGDriveHandler(svc *pipeline.Service, tempDir string) *GDriveHandler {
	return &GDriveHandler{
		svc:         svc,
		tempDir:     tempDir,
		client:      http.DefaultClient,
		downloadURL: "https://drive.google.com/uc?export=download&id=%s",
	}
}

// GDriveRequest represents the request body
type GDriveRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Handle processes Google Drive link requests
func (h *GDriveHandler) Handle(c *fiber.Ctx) error {
	var req GDriveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", "ERR_INVALID_BODY")
	}
	if req.URL == "" {
		return badRequest(c, "URL is required", "ERR_NO_URL")
	}

	fileID := extractGDriveFileID(req.URL)
	if fileID == "" {
		return badRequest(c, "Invalid Google Drive URL", "ERR_INVALID_URL")
	}
	if req.Name == "" {
		req.Name = "gdrive_file"
	}

	tempPath := filepath.Join(h.tempDir, uuid.New().String()+".mp3")
	log.Printf("Downloading from Google Drive: %s", fileID)
	status, err := h.download(fmt.Sprintf(h.downloadURL, fileID), tempPath)
	if err != nil {
		log.Printf("Failed to download from Google Drive: %v", err)
		os.Remove(tempPath)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to download file from Google Drive",
			"code":  "ERR_DOWNLOAD_FAILED",
		})
	}
	if status != http.StatusOK {
		os.Remove(tempPath)
		return badRequest(c, "File not accessible (may be private or doesn't exist)", "ERR_FILE_NOT_ACCESSIBLE")
	}

	sess, err := h.svc.Ingest(c.UserContext(), req.Name, tempPath)
	if err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": sess.ID,
		"message":    "Google Drive file downloaded and preprocessed",
		"session":    sess.Info(),
	})
}

func (h *GDriveHandler) download(url, path string) (int, error) {
	resp, err := h.client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, err
	}
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return 0, err
	}
	return resp.StatusCode, out.Close()
}

var (
	gdriveFilePath = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	gdriveIDParam  = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	gdriveBareID   = regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
)

// extractGDriveFileID extracts the file ID from various Google Drive URL formats
func extractGDriveFileID(url string) string {
	for _, re := range []*regexp.Regexp{gdriveFilePath, gdriveIDParam, gdriveBareID} {
		if matches := re.FindStringSubmatch(url); len(matches) > 1 {
			return matches[1]
		}
	}
	return ""
}
