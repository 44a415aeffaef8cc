package model

type Post struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Nickname      string `json:"nickname"`
	Content       string `json:"content"`
	Language      string `json:"language"`
	ReplyToPostID string `json:"reply_to_post_id"`
	ReplyToUserID string `json:"reply_to_user_id"`
	Ctime         int64  `json:"ctime"`
}

func (p *Post) IsReply() bool {
	return p.ReplyToPostID != ""
}
