package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/revoice/internal/queue"
)

// JobHandler reports background job status.
type JobHandler struct {
	pool *queue.WorkerPool
}

func NewJobHandler(pool *queue.WorkerPool) *JobHandler {
	return &JobHandler{pool: pool}
}

// Get returns the status of one job.
func (h *JobHandler) Get(c *fiber.Ctx) error {
	job, err := h.pool.GetJob(c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(job.Status())
}
