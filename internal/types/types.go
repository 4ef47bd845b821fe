package types

// Cue is one timed caption block before merging. Times are whole seconds.
type Cue struct {
	Start   int
	End     int
	Content string
}

type Line struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Content string `json:"content"`
	Index   int    `json:"index"`
}

type HeatmapSegment struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Value int `json:"value"`
}

type ScoredLine struct {
	Line
	HeatValue         int `json:"heatValue"`
	MostReplayedScore int `json:"mostReplayedScore"`
}

type Episode struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug,omitempty"`
	Season          int    `json:"season,omitempty"`
	Index           int    `json:"index"`
	IsAgeRestricted bool   `json:"isAgeRestricted,omitempty"`
}

type Popularity struct {
	ViewCount    int64            `json:"viewCount"`
	LikeCount    int64            `json:"likeCount,omitempty"`
	CommentCount int64            `json:"commentCount,omitempty"`
	Heatmap      []HeatmapSegment `json:"heatmap"`
}

type Record struct {
	ObjectID string        `json:"objectID"`
	Episode  RecordEpisode `json:"episode"`
	Line     RecordLine    `json:"line"`
}

type RecordEpisode struct {
	VideoID         string `json:"videoId"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	Season          int    `json:"season"`
	Index           int    `json:"index"`
	IsAgeRestricted bool   `json:"isAgeRestricted"`
	ViewCount       int64  `json:"viewCount"`
	LikeCount       int64  `json:"likeCount"`
	CommentCount    int64  `json:"commentCount"`
}

type RecordLine struct {
	Index             int    `json:"index"`
	Start             int    `json:"start"`
	End               int    `json:"end"`
	Content           string `json:"content"`
	HeatValue         int    `json:"heatValue"`
	MostReplayedScore int    `json:"mostReplayedScore"`
	URL               string `json:"url"`
}
