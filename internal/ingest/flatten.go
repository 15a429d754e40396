package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spacesedan/toxiflow/internal/models"
)

// nodeClass is the tagged classification of a raw tree node. The upstream
// schema is not contractually stable, so anything that is not a well-formed
// comment is skipped rather than surfaced.
type nodeClass int

const (
	nodeComment nodeClass = iota
	nodePlaceholder
	nodeMalformed
)

func classifyNode(thing models.Thing) (models.CommentData, nodeClass) {
	switch thing.Kind {
	case models.KindComment:
	case models.KindMore:
		return models.CommentData{}, nodePlaceholder
	default:
		return models.CommentData{}, nodeMalformed
	}

	var data models.CommentData
	if err := json.Unmarshal(thing.Data, &data); err != nil || data.ID == "" {
		return models.CommentData{}, nodeMalformed
	}
	return data, nodeComment
}

// FlattenThread converts a two-element thread payload (post wrapper, reply
// tree wrapper) into a post record at depth 0 followed by its comments in
// pre-order, each annotated with parent linkage and depth.
func FlattenThread(payload models.ThreadPayload, container string, fetchedAt time.Time) (models.FlatPost, error) {
	if len(payload) < 2 {
		return models.FlatPost{}, fmt.Errorf("thread payload has %d elements, want 2", len(payload))
	}

	var postListing models.Listing
	if err := json.Unmarshal(payload[0], &postListing); err != nil {
		return models.FlatPost{}, fmt.Errorf("failed to parse post wrapper: %w", err)
	}
	postData, raw, ok := firstPost(postListing)
	if !ok {
		return models.FlatPost{}, fmt.Errorf("thread payload has no post")
	}

	flat := models.FlatPost{
		Post: postRecord(postData, raw, container, fetchedAt),
	}

	var commentListing models.Listing
	if err := json.Unmarshal(payload[1], &commentListing); err != nil {
		// A malformed reply tree is not fatal; the post still counts.
		return flat, nil
	}
	flattenComments(commentListing.Data.Children, container, 1, fetchedAt, &flat.Comments)

	return flat, nil
}

// flattenComments walks reply nodes depth-first in original sibling order,
// appending a record per well-formed comment and recursing into nested
// replies at depth+1.
func flattenComments(nodes []models.Thing, container string, depth int, fetchedAt time.Time, out *[]models.ContentRecord) {
	for _, node := range nodes {
		data, class := classifyNode(node)
		switch class {
		case nodePlaceholder, nodeMalformed:
			continue
		case nodeComment:
		}

		*out = append(*out, commentRecord(data, node.Data, container, depth, fetchedAt))

		if len(data.Replies) == 0 {
			continue
		}
		var replies models.Listing
		if err := json.Unmarshal(data.Replies, &replies); err != nil {
			// Replies is an empty string on leaf comments.
			continue
		}
		flattenComments(replies.Data.Children, container, depth+1, fetchedAt, out)
	}
}

// firstPost pulls the post out of a listing wrapper: the first child of kind
// t3 with a usable id.
func firstPost(listing models.Listing) (models.PostData, json.RawMessage, bool) {
	for _, child := range listing.Data.Children {
		if child.Kind != models.KindPost {
			continue
		}
		var data models.PostData
		if err := json.Unmarshal(child.Data, &data); err != nil || data.ID == "" {
			continue
		}
		return data, child.Data, true
	}
	return models.PostData{}, nil, false
}

func postRecord(data models.PostData, raw json.RawMessage, container string, fetchedAt time.Time) models.ContentRecord {
	body := strings.TrimSpace(data.Title)
	if selftext := strings.TrimSpace(data.Selftext); selftext != "" {
		if body != "" {
			body += "\n\n"
		}
		body += selftext
	}

	return models.ContentRecord{
		ID:          data.ID,
		Kind:        models.ContentKindPost,
		ContainerID: container,
		Author:      data.Author,
		CreatedAt:   epochToTime(data.CreatedUTC),
		Body:        body,
		Depth:       0,
		Engagement: map[string]int{
			"score": data.Score,
			"ups":   data.Ups,
			"downs": data.Downs,
		},
		NumComments: data.NumComments,
		FetchedAt:   fetchedAt,
		Raw:         raw,
	}
}

func commentRecord(data models.CommentData, raw json.RawMessage, container string, depth int, fetchedAt time.Time) models.ContentRecord {
	return models.ContentRecord{
		ID:          data.ID,
		Kind:        models.ContentKindComment,
		ParentID:    stripKindPrefix(data.ParentID),
		ContainerID: container,
		Author:      data.Author,
		CreatedAt:   epochToTime(data.CreatedUTC),
		Body:        data.Body,
		Depth:       depth,
		Engagement: map[string]int{
			"score": data.Score,
			"ups":   data.Ups,
			"downs": data.Downs,
		},
		FetchedAt: fetchedAt,
		Raw:       raw,
	}
}

// stripKindPrefix turns an upstream fullname like "t1_abc" or "t3_xyz" into
// the bare id used as our natural key.
func stripKindPrefix(fullname string) string {
	if idx := strings.IndexByte(fullname, '_'); idx > 0 && idx <= 3 {
		return fullname[idx+1:]
	}
	return fullname
}

func epochToTime(epoch float64) *time.Time {
	if epoch <= 0 {
		return nil
	}
	t := time.Unix(int64(epoch), 0).UTC()
	return &t
}
