package search

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pipeline states. A failing stage leaves the request in its last
// successful state; earlier stages' writes are kept.
const (
	StateIdle               = "idle"
	StateCollectionResolved = "collection_resolved"
	StateFilterGenerated    = "filter_generated"
	StateCountKnown         = "count_known"
	StatePresentationKnown  = "presentation_known"
	StateGroupingKnown      = "grouping_known"
	StateReady              = "ready"
)

// Presentation modes. The model answers tree/graph/pivot; tree is the
// safe default.
const (
	PresentationTree  = "tree"
	PresentationGraph = "graph"
	PresentationPivot = "pivot"
)

// SearchRequest is one persisted natural-language query and everything
// the pipeline derived from it. Raw model replies are kept verbatim as
// an audit trail; they are never re-parsed.
type SearchRequest struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name"`
	Question    string `json:"question"`
	Preselected string `json:"preselected"` // user-chosen collection, skips resolution
	Collection  string `json:"collection"`  // resolved technical name
	Domain      string `json:"domain"`      // validated filter expression

	CollectionReply   string `json:"collection_reply"`
	DomainReply       string `json:"domain_reply"`
	PresentationReply string `json:"presentation_reply"`
	GroupingReply     string `json:"grouping_reply"`

	Presentation string `json:"presentation"` // empty until inferred
	GroupingKey  string `json:"grouping_key"` // e.g. "date:month", empty means none

	ResponseSeconds float64 `json:"response_seconds"`
	ResultCount     int64   `json:"result_count"`

	FavoriteFilterID *uint  `json:"favorite_filter_id"`
	State            string `json:"state"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// NewSearchRequest builds an unpersisted request with a draft placeholder
// name; the sequence reference is assigned on first persist.
func NewSearchRequest(question, preselected string) *SearchRequest {
	return &SearchRequest{
		Name:        "draft-" + uuid.NewString(),
		Question:    question,
		Preselected: preselected,
		State:       StateIdle,
	}
}
