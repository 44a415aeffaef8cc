package model

const (
	NotificationTypeReply   = "reply"
	NotificationTypeMention = "mention"
)

type Notification struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	ActorID string `json:"actor_id"`
	PostID  string `json:"post_id"`
	Type    string `json:"type"`
	Ctime   int64  `json:"ctime"`
}
