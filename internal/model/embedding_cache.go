package model

// CachedEmbedding is one locally persisted embedding. Keyed by model, task
// type, and content hash so unchanged interest summaries and post excerpts
// re-embed for free across sweeps and restarts. Never crosses the wire, so
// no JSON shape.
type CachedEmbedding struct {
	ModelName   string
	TaskType    string
	ContentHash string
	Values      []float32
	Ctime       int64
}
