package model

type User struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Language string `json:"language"`
	Profile  string `json:"profile"`
	Ctime    int64  `json:"ctime"`
}
