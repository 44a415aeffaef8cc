package model

// PostSummary is produced by the external summarization worker; this
// subsystem only reads it as the similarity anchor for ranking.
type PostSummary struct {
	PostID  string   `json:"post_id"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Vector  []byte   `json:"vector"`
	Mtime   int64    `json:"mtime"`
}
