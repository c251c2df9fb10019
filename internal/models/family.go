package models

// Family is a group of users sharing albums, joined with FamilyCode
type Family struct {
	Base
	Name       string `db:"name" json:"name" validate:"required"`
	FamilyCode string `db:"family_code" json:"familyCode" validate:"required"`
	CreatedBy  string `db:"created_by" json:"createdBy" validate:"required"`
}

// FamilyMember links a user to a family. A user joins a family at most once.
type FamilyMember struct {
	Base
	FamilyID  string `db:"family_id" json:"familyId" validate:"required"`
	UserID    string `db:"user_id" json:"userId" validate:"required"`
	UserName  string `db:"user_name" json:"userName" validate:"required"`
	UserEmail string `db:"user_email" json:"userEmail" validate:"required"`
	IsAdmin   bool   `db:"is_admin" json:"isAdmin"`
}
