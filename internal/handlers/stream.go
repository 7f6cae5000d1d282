package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/revoice/internal/pipeline"
	"github.com/codebuildervaibhav/revoice/internal/queue"
)

// StreamHandler serves the WebSocket endpoints: streamed uploads and job
// progress.
type StreamHandler struct {
	svc     *pipeline.Service
	pool    *queue.WorkerPool
	tempDir string
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(svc *pipeline.Service, pool *queue.WorkerPool, tempDir string) *StreamHandler {
	return &StreamHandler{
		svc:     svc,
		pool:    pool,
		tempDir: tempDir,
	}
}

// Upload receives a recording over a WebSocket. Text messages set the
// session name, binary messages carry audio, and "END" starts ingestion.
func (h *StreamHandler) Upload(c *websocket.Conn) {
	defer c.Close()

	var (
		buffer bytes.Buffer
		name   string
		id     = uuid.New().String()
	)
	log.Printf("WebSocket upload connection established: %s", id)

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Printf("WebSocket read error: %v", err)
			return
		}
		if messageType == websocket.TextMessage {
			msg := string(message)
			if msg == "END" {
				break
			}
			if len(msg) > 0 && len(msg) < 200 {
				name = msg
			}
			continue
		}
		if messageType == websocket.BinaryMessage {
			buffer.Write(message)
		}
	}

	if buffer.Len() == 0 {
		writeJSON(c, map[string]string{"error": "no audio received", "code": "ERR_NO_FILE"})
		return
	}
	if name == "" {
		name = "stream_recording"
	}

	tempPath := filepath.Join(h.tempDir, id+".webm")
	if err := os.WriteFile(tempPath, buffer.Bytes(), 0644); err != nil {
		log.Printf("Failed to save stream buffer: %v", err)
		writeJSON(c, map[string]string{"error": "failed to save stream", "code": "ERR_SAVE_FAILED"})
		return
	}
	log.Printf("Stream saved to %s (%d bytes)", tempPath, buffer.Len())

	sess, err := h.svc.Ingest(context.Background(), name, tempPath)
	if err != nil {
		_, code := errorStatus(err)
		writeJSON(c, map[string]string{"error": err.Error(), "code": code})
		return
	}
	writeJSON(c, map[string]string{"session_id": sess.ID, "status": "ready"})
}

// JobProgress pushes a job's status on every change until it finishes.
func (h *StreamHandler) JobProgress(c *websocket.Conn) {
	defer c.Close()

	job, err := h.pool.GetJob(c.Params("id"))
	if err != nil {
		writeJSON(c, map[string]string{"error": err.Error(), "code": "ERR_NOT_FOUND"})
		return
	}

	updates, cancel := job.Subscribe()
	defer cancel()

	var last queue.Status
	for st := range updates {
		last = st
		if err := writeJSON(c, st); err != nil {
			log.Printf("WebSocket write error for job %s: %v", job.ID, err)
			return
		}
	}
	// The final update may have been dropped for a slow reader.
	if final := job.Status(); final.UpdatedAt != last.UpdatedAt {
		writeJSON(c, final)
	}
}

func writeJSON(c *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}
