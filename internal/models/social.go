package models

// Comment is left on a personal Photo
type Comment struct {
	Base
	Content     string `db:"content" json:"content" validate:"required,notblank"`
	AuthorName  string `db:"author_name" json:"authorName" validate:"required"`
	AuthorEmail string `db:"author_email" json:"authorEmail"`
	PhotoID     string `db:"photo_id" json:"photoId" validate:"required"`
}

// FamilyComment is left on a FamilyPhoto
type FamilyComment struct {
	Base
	Content   string `db:"content" json:"content" validate:"required,notblank"`
	UserName  string `db:"user_name" json:"userName" validate:"required"`
	UserEmail string `db:"user_email" json:"userEmail"`
	PhotoID   string `db:"photo_id" json:"photoId" validate:"required"`
}

// LikeFields are the attributes shared by Like and FamilyLike
type LikeFields struct {
	UserID   string `db:"user_id" json:"userId" validate:"required"`
	UserName string `db:"user_name" json:"userName"`
	PhotoID  string `db:"photo_id" json:"photoId" validate:"required"`
}

// LikeData exposes the shared like attributes
func (l *LikeFields) LikeData() *LikeFields {
	return l
}

// Like marks a personal Photo as liked by a user, at most once per user
type Like struct {
	Base
	LikeFields
}

// FamilyLike marks a FamilyPhoto as liked by a user, at most once per user
type FamilyLike struct {
	Base
	LikeFields
}
