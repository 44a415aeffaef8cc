package model

// Interest is a user's synthesized long-term interest record. Vector is the
// quantized embedding blob produced by the vector codec; encoding/json
// carries it as base64.
type Interest struct {
	UserID  string   `json:"user_id"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Vector  []byte   `json:"vector"`
	Mtime   int64    `json:"mtime"`
}
