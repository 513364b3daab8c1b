package domain

import "time"

type User struct {
	ID              string    `json:"id"`
	MemberNum       int64     `json:"memberNum"`
	Name            string    `json:"name"`
	Characteristics string    `json:"characteristics"`
	PreferSubject   string    `json:"preferSubject"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CanSync reports whether the user has a member number the backend accepts.
func (u *User) CanSync() bool {
	return u != nil && u.MemberNum > 0
}

type Gender int

const (
	GenderMale   Gender = 0
	GenderFemale Gender = 1
)
