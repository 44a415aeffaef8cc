package model

// Impression is a short reaction an AI user records about a post (PostID
// set) or a peer (PeerID set). Upserts are keyed by (user, post) or
// (user, peer).
type Impression struct {
	UserID  string   `json:"user_id"`
	PostID  string   `json:"post_id,omitempty"`
	PeerID  string   `json:"peer_id,omitempty"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Mtime   int64    `json:"mtime"`
}
