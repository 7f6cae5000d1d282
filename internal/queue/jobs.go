package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/revoice/internal/pipeline"
	"github.com/codebuildervaibhav/revoice/internal/synthesis"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

// RunFunc does the work of a job. It returns the job's result and its final
// status (COMPLETED, PARTIAL or FAILED).
type RunFunc func(ctx context.Context, job *Job) (result any, status string, err error)

// Job is a long-running session operation executed by the worker pool.
type Job struct {
	ID        string
	SessionID string
	Kind      string
	CreatedAt time.Time

	run RunFunc

	mu        sync.RWMutex
	status    string
	done      int
	total     int
	err       error
	result    any
	updatedAt time.Time
	subs      map[chan Status]struct{}
}

// Status is a point-in-time view of a job.
type Status struct {
	JobID     string    `json:"job_id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	Error     string    `json:"error,omitempty"`
	Result    any       `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	switch s.Status {
	case types.StatusCompleted, types.StatusPartial, types.StatusFailed:
		return true
	}
	return false
}

// NewJob creates a new job with default values
func NewJob(sessionID, kind string, run RunFunc) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Kind:      kind,
		CreatedAt: now,
		run:       run,
		status:    types.StatusQueued,
		updatedAt: now,
		subs:      make(map[chan Status]struct{}),
	}
}

// NewCloneJob re-synthesizes every sentence of a session.
func NewCloneJob(svc *pipeline.Service, sessionID string) *Job {
	return NewJob(sessionID, types.JobClone, func(ctx context.Context, job *Job) (any, string, error) {
		res, err := svc.CloneAll(ctx, sessionID, func(done, total int, _ synthesis.ItemResult) {
			job.SetProgress(done, total)
		})
		if err != nil {
			return nil, types.StatusFailed, err
		}
		items := make([]cloneItem, 0, len(res.Items))
		for _, it := range res.Items {
			ci := cloneItem{SentenceID: it.SentenceID, ClipPath: it.ClipPath, ClipRef: it.ClipRef}
			if it.Err != nil {
				ci.Error = it.Err.Error()
			}
			items = append(items, ci)
		}
		out := cloneResult{Outcome: string(res.Outcome()), Items: items}
		switch res.Outcome() {
		case synthesis.AllSucceeded:
			return out, types.StatusCompleted, nil
		case synthesis.Partial:
			return out, types.StatusPartial, res.Err()
		default:
			return out, types.StatusFailed, res.Err()
		}
	})
}

type cloneItem struct {
	SentenceID int    `json:"sentence_id"`
	ClipPath   string `json:"local_url,omitempty"`
	ClipRef    string `json:"oss_url,omitempty"`
	Error      string `json:"error,omitempty"`
}

type cloneResult struct {
	Outcome string      `json:"outcome"`
	Items   []cloneItem `json:"items"`
}

// NewMergeJob rebuilds a session's track.
func NewMergeJob(svc *pipeline.Service, sessionID string) *Job {
	return NewJob(sessionID, types.JobMerge, func(ctx context.Context, job *Job) (any, string, error) {
		res, err := svc.Merge(ctx, sessionID)
		if err != nil {
			return nil, types.StatusFailed, err
		}
		return res, types.StatusCompleted, nil
	})
}

// Status returns a snapshot of the job.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.statusLocked()
}

func (j *Job) statusLocked() Status {
	s := Status{
		JobID:     j.ID,
		SessionID: j.SessionID,
		Kind:      j.Kind,
		Status:    j.status,
		Done:      j.done,
		Total:     j.total,
		Result:    j.result,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.updatedAt,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}

// SetProgress records how many work items are done.
func (j *Job) SetProgress(done, total int) {
	j.update(func() {
		j.done, j.total = done, total
	})
}

func (j *Job) setStatus(status string) {
	j.update(func() { j.status = status })
}

func (j *Job) finish(status string, result any, err error) {
	j.update(func() {
		j.status = status
		j.result = result
		j.err = err
	})
}

// update applies fn and notifies subscribers. Slow subscribers miss
// intermediate updates; terminal states close every subscription.
func (j *Job) update(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn()
	j.updatedAt = time.Now()
	st := j.statusLocked()
	for ch := range j.subs {
		select {
		case ch <- st:
		default:
		}
		if st.Finished() {
			close(ch)
			delete(j.subs, ch)
		}
	}
}

// Subscribe streams status changes. The channel starts with the current
// status and is closed once the job finishes. cancel must be called when
// the subscriber goes away early.
func (j *Job) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 16)
	j.mu.Lock()
	st := j.statusLocked()
	ch <- st
	if st.Finished() {
		close(ch)
		j.mu.Unlock()
		return ch, func() {}
	}
	j.subs[ch] = struct{}{}
	j.mu.Unlock()

	cancel := func() {
		j.mu.Lock()
		if _, ok := j.subs[ch]; ok {
			delete(j.subs, ch)
			close(ch)
		}
		j.mu.Unlock()
	}
	return ch, cancel
}
