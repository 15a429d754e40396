package models

import (
	"encoding/json"
	"time"
)

type ContentKind string

const (
	ContentKindPost    ContentKind = "post"
	ContentKindComment ContentKind = "comment"
)

// ContentRecord is a normalized post or comment produced by the flattener.
// Posts have Depth 0 and no ParentID; a comment's Depth is the number of
// reply hops separating it from its post.
type ContentRecord struct {
	ID          string          `json:"id"`
	Kind        ContentKind     `json:"kind"`
	ParentID    string          `json:"parent_id,omitempty"`
	ContainerID string          `json:"container_id"`
	Author      string          `json:"author"`
	CreatedAt   *time.Time      `json:"created_at"`
	Body        string          `json:"body"`
	Depth       int             `json:"depth"`
	Engagement  map[string]int  `json:"engagement,omitempty"`
	NumComments int             `json:"num_comments,omitempty"`
	FetchedAt   time.Time       `json:"fetched_at"`
	Raw         json.RawMessage `json:"-"`
}

// FlatPost pairs a post record with the flattened comments beneath it,
// ready for persistence as one commit unit.
type FlatPost struct {
	Post     ContentRecord
	Comments []ContentRecord
}

// UnscoredItem is the outward read interface consumed by the scoring
// collaborator.
type UnscoredItem struct {
	ID        string      `json:"id"`
	Kind      ContentKind `json:"kind"`
	Container string      `json:"container"`
	Timestamp *time.Time  `json:"timestamp"`
	Text      string      `json:"text"`
}
