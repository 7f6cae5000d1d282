package handlers

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/revoice/internal/audio"
	"github.com/codebuildervaibhav/revoice/internal/pipeline"
	"github.com/codebuildervaibhav/revoice/internal/queue"
	"github.com/codebuildervaibhav/revoice/internal/storage"
	"github.com/codebuildervaibhav/revoice/internal/synthesis"
	"github.com/codebuildervaibhav/revoice/internal/transcription"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

// SessionHandler serves the per-session editing workflow.
type SessionHandler struct {
	svc  *pipeline.Service
	pool *queue.WorkerPool
}

func NewSessionHandler(svc *pipeline.Service, pool *queue.WorkerPool) *SessionHandler {
	return &SessionHandler{svc: svc, pool: pool}
}

// List returns every live session.
func (h *SessionHandler) List(c *fiber.Ctx) error {
	sessions := h.svc.Sessions().List()
	out := make([]fiber.Map, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, fiber.Map{
			"session_id": s.ID,
			"name":       s.Name,
			"created_at": s.CreatedAt,
		})
	}
	return c.JSON(out)
}

// Get returns the session summary.
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	info, err := h.svc.Info(c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(info)
}

// Delete removes a session and its workspace.
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.svc.Remove(id); err != nil {
		return sendError(c, err)
	}
	h.pool.ForgetSession(id)
	return c.SendStatus(fiber.StatusNoContent)
}

// Transcribe runs speech recognition on the session audio.
func (h *SessionHandler) Transcribe(c *fiber.Ctx) error {
	sentences, err := h.svc.Transcribe(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":   "Audio transcribed successfully",
		"sentences": sentences,
	})
}

// PutTranscript installs a transcript produced by an external recognizer.
// Both a sentence array and the recognizer result document are accepted.
func (h *SessionHandler) PutTranscript(c *fiber.Ctx) error {
	sentences, err := transcription.ParseTranscript(c.Body())
	if err != nil {
		return badRequest(c, "Invalid transcript", "ERR_INVALID_BODY")
	}
	if err := h.svc.SetTranscript(c.UserContext(), c.Params("id"), sentences); err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{"sentences": sentences})
}

// Split cuts the session audio into sentence clips.
func (h *SessionHandler) Split(c *fiber.Ctx) error {
	segments, err := h.svc.Split(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":             "Audio split by sentences successfully",
		"sentence_audio_info": segments,
	})
}

type updateSentencesRequest struct {
	Updated []pipeline.TextEdit `json:"updated_sentences"`
}

// UpdateSentences applies text edits; unknown sentences are reported per
// item.
func (h *SessionHandler) UpdateSentences(c *fiber.Ctx) error {
	var req updateSentencesRequest
	if err := c.BodyParser(&req); err != nil || req.Updated == nil {
		return badRequest(c, "Invalid data", "ERR_INVALID_BODY")
	}
	res, err := h.svc.UpdateTexts(c.Params("id"), req.Updated)
	if err != nil {
		return sendError(c, err)
	}
	info, _ := h.svc.Info(c.Params("id"))
	return c.JSON(fiber.Map{
		"outcome":                res.Outcome(),
		"items":                  itemsJSON(res),
		"updated_sentence_audio": info.Sentences,
	})
}

// SetVoice records the reference voice: either a multipart upload of a
// sample ("file", "text") to clone, or a JSON body naming a voice_id.
func (h *SessionHandler) SetVoice(c *fiber.Ctx) error {
	id := c.Params("id")
	sess, err := h.svc.Sessions().Get(id)
	if err != nil {
		return sendError(c, err)
	}

	var in pipeline.VoiceInput
	if file, err := c.FormFile("file"); err == nil {
		if !audio.ValidateAudioFormat(file.Filename) {
			return badRequest(c, "Unsupported audio format", "ERR_INVALID_FORMAT")
		}
		dst := filepath.Join(sess.Dir, storage.DirUpload, "reference"+filepath.Ext(file.Filename))
		if err := c.SaveFile(file, dst); err != nil {
			return sendError(c, err)
		}
		in = pipeline.VoiceInput{
			VoiceID:    c.FormValue("voice_id"),
			SamplePath: dst,
			SampleText: c.FormValue("text"),
		}
	} else {
		var body struct {
			VoiceID string `json:"voice_id"`
			Text    string `json:"text"`
		}
		if err := c.BodyParser(&body); err != nil || body.VoiceID == "" {
			return badRequest(c, "Audio file or voice_id is required", "ERR_INVALID_BODY")
		}
		in = pipeline.VoiceInput{VoiceID: body.VoiceID, SampleText: body.Text}
	}

	ref, err := h.svc.SetVoice(c.UserContext(), id, in)
	if err != nil {
		if in.SamplePath != "" {
			os.Remove(in.SamplePath)
		}
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":         "Reference voice set successfully",
		"reference_audio": ref,
	})
}

// History returns the text edits applied to the session's sentences.
func (h *SessionHandler) History(c *fiber.Ctx) error {
	edits, err := h.svc.History(c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{"edits": edits})
}

// Artifacts lists what has been written for the session, with remote
// refs where publishing succeeded.
func (h *SessionHandler) Artifacts(c *fiber.Ctx) error {
	artifacts, err := h.svc.Artifacts(c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(artifacts)
}

// Clone starts bulk re-synthesis as a background job.
func (h *SessionHandler) Clone(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.svc.Sessions().Get(id); err != nil {
		return sendError(c, err)
	}
	return h.enqueue(c, queue.NewCloneJob(h.svc, id))
}

type regenerateRequest struct {
	Text string `json:"text"`
}

// Regenerate re-synthesizes one sentence with new text.
func (h *SessionHandler) Regenerate(c *fiber.Ctx) error {
	sid, err := strconv.Atoi(c.Params("sid"))
	if err != nil {
		return badRequest(c, "Invalid sentence id", "ERR_INVALID_ID")
	}
	var req regenerateRequest
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return badRequest(c, "Missing required parameter text", "ERR_INVALID_BODY")
	}
	seg, err := h.svc.Regenerate(c.UserContext(), c.Params("id"), sid, req.Text)
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":          "Sentence regenerated successfully",
		"updated_sentence": seg,
	})
}

// Merge rebuilds the session track. With ?async=true it runs as a job.
func (h *SessionHandler) Merge(c *fiber.Ctx) error {
	id := c.Params("id")
	if c.QueryBool("async") {
		if _, err := h.svc.Sessions().Get(id); err != nil {
			return sendError(c, err)
		}
		return h.enqueue(c, queue.NewMergeJob(h.svc, id))
	}
	res, err := h.svc.Merge(c.UserContext(), id)
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(res)
}

// Subtitles writes the caption file.
func (h *SessionHandler) Subtitles(c *fiber.Ctx) error {
	a, err := h.svc.Subtitles(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":       "Subtitles generated successfully",
		"generated_srt": a,
	})
}

// GetSubtitles returns the caption file itself, generating it when it
// does not exist yet.
func (h *SessionHandler) GetSubtitles(c *fiber.Ctx) error {
	id := c.Params("id")
	sess, err := h.svc.Sessions().Get(id)
	if err != nil {
		return sendError(c, err)
	}
	a, ok := sess.Artifact(types.ArtifactSubtitles)
	if !ok {
		if a, err = h.svc.Subtitles(c.UserContext(), id); err != nil {
			return sendError(c, err)
		}
	}
	data, err := os.ReadFile(a.LocalPath)
	if err != nil {
		return sendError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/x-subrip; charset=utf-8")
	return c.Send(data)
}

// MergedAudio returns the merged WAV.
func (h *SessionHandler) MergedAudio(c *fiber.Ctx) error {
	sess, err := h.svc.Sessions().Get(c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	a, ok := sess.Artifact(types.ArtifactMergedAudio)
	if !ok {
		return sendError(c, &types.NotFoundError{Kind: "merged audio of session", ID: sess.ID})
	}
	return c.SendFile(a.LocalPath)
}

func (h *SessionHandler) enqueue(c *fiber.Ctx, job *queue.Job) error {
	if err := h.pool.EnqueueJob(job); err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": job.ID,
		"status": job.Status().Status,
	})
}

func itemsJSON(res *synthesis.BatchResult) []fiber.Map {
	out := make([]fiber.Map, 0, len(res.Items))
	for _, it := range res.Items {
		m := fiber.Map{"sentence_id": it.SentenceID, "ok": it.OK()}
		if it.Err != nil {
			m["error"] = it.Err.Error()
		}
		out = append(out, m)
	}
	return out
}
