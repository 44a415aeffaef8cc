package model

// RunLog records one completed sweep of the user universe, for operator
// visibility only.
type RunLog struct {
	ID          int64 `json:"id"`
	StartedAt   int64 `json:"started_at"`
	FinishedAt  int64 `json:"finished_at"`
	UsersTotal  int   `json:"users_total"`
	UsersFailed int   `json:"users_failed"`
}
