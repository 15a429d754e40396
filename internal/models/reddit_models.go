package models

import "encoding/json"

// Wire shapes for the public listing/thread JSON endpoints. The upstream
// schema is not contractually stable, so optional fields stay permissive and
// nested reply containers are kept as raw JSON until the flattener inspects
// them.

const (
	KindComment = "t1"
	KindPost    = "t3"
	KindMore    = "more"
)

type Listing struct {
	Data ListingData `json:"data"`
}

type ListingData struct {
	After    string  `json:"after"`
	Children []Thing `json:"children"`
}

type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type PostData struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	Author        string  `json:"author"`
	Subreddit     string  `json:"subreddit"`
	SubredditType string  `json:"subreddit_type"`
	Permalink     string  `json:"permalink"`
	CreatedUTC    float64 `json:"created_utc"`
	Score         int     `json:"score"`
	Ups           int     `json:"ups"`
	Downs         int     `json:"downs"`
	NumComments   int     `json:"num_comments"`
	Over18        bool    `json:"over_18"`
}

type CommentData struct {
	ID         string  `json:"id"`
	ParentID   string  `json:"parent_id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	CreatedUTC float64 `json:"created_utc"`
	Score      int     `json:"score"`
	Ups        int     `json:"ups"`
	Downs      int     `json:"downs"`
	// Replies is either an empty string or a nested Listing.
	Replies json.RawMessage `json:"replies"`
}

// ThreadPayload is the two-element response of an item endpoint: element 0
// wraps the post, element 1 wraps the comment tree.
type ThreadPayload []json.RawMessage
