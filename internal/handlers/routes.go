package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/revoice/internal/pipeline"
	"github.com/codebuildervaibhav/revoice/internal/queue"
)

// Options configures the HTTP surface.
type Options struct {
	TempDir   string
	MaxSizeMB int
}

// Register mounts every session, job and WebSocket route on app.
func Register(app *fiber.App, svc *pipeline.Service, pool *queue.WorkerPool, opts Options) {
	uploads := NewUploadHandler(svc, opts.TempDir, opts.MaxSizeMB)
	gdrive := NewGDriveHandler(svc, opts.TempDir)
	sessions := NewSessionHandler(svc, pool)
	jobs := NewJobHandler(pool)
	stream := NewStreamHandler(svc, pool, opts.TempDir)

	app.Post("/sessions", uploads.Handle)
	app.Post("/sessions/gdrive", gdrive.Handle)
	app.Get("/sessions", sessions.List)
	app.Get("/sessions/:id", sessions.Get)
	app.Delete("/sessions/:id", sessions.Delete)
	app.Post("/sessions/:id/transcribe", sessions.Transcribe)
	app.Put("/sessions/:id/transcript", sessions.PutTranscript)
	app.Post("/sessions/:id/split", sessions.Split)
	app.Put("/sessions/:id/sentences", sessions.UpdateSentences)
	app.Get("/sessions/:id/history", sessions.History)
	app.Get("/sessions/:id/artifacts", sessions.Artifacts)
	app.Post("/sessions/:id/voice", sessions.SetVoice)
	app.Post("/sessions/:id/clone", sessions.Clone)
	app.Post("/sessions/:id/sentences/:sid/regenerate", sessions.Regenerate)
	app.Post("/sessions/:id/merge", sessions.Merge)
	app.Get("/sessions/:id/merged", sessions.MergedAudio)
	app.Post("/sessions/:id/subtitles", sessions.Subtitles)
	app.Get("/sessions/:id/subtitles", sessions.GetSubtitles)

	app.Get("/jobs/:id", jobs.Get)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/upload", websocket.New(stream.Upload))
	app.Get("/ws/jobs/:id", websocket.New(stream.JobProgress))
}
