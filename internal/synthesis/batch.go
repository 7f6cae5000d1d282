package synthesis

import "errors"

// Outcome classifies a batch.
type Outcome string

const (
	AllSucceeded Outcome = "all_succeeded"
	Partial      Outcome = "partial"
	AllFailed    Outcome = "all_failed"
)

// ItemResult is the result for one sentence of a batch.
type ItemResult struct {
	SentenceID int    `json:"sentence_id"`
	ClipPath   string `json:"local_url,omitempty"`
	ClipRef    string `json:"oss_url,omitempty"`
	Err        error  `json:"-"`
}

// OK reports whether the item succeeded.
func (i ItemResult) OK() bool { return i.Err == nil }

// BatchResult aggregates per-sentence results of a bulk operation.
type BatchResult struct {
	Items []ItemResult `json:"items"`
}

// Failed counts failed items.
func (b *BatchResult) Failed() int {
	n := 0
	for _, it := range b.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}

// Outcome classifies the batch. An empty batch counts as all succeeded.
func (b *BatchResult) Outcome() Outcome {
	switch failed := b.Failed(); {
	case failed == 0:
		return AllSucceeded
	case failed == len(b.Items):
		return AllFailed
	default:
		return Partial
	}
}

// Err joins every item error, or returns nil when all succeeded.
func (b *BatchResult) Err() error {
	var errs []error
	for _, it := range b.Items {
		if it.Err != nil {
			errs = append(errs, it.Err)
		}
	}
	return errors.Join(errs...)
}
