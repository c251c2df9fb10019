package models

// Album is a personal album owned by its creator
type Album struct {
	Base
	Name          string `db:"name" json:"name" validate:"required"`
	Description   string `db:"description" json:"description"`
	CoverPhotoURL string `db:"cover_photo_url" json:"coverPhotoUrl"`
	Date          string `db:"album_date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	CreatedBy     string `db:"created_by" json:"createdBy" validate:"required"`
}

// FamilyAlbum is an album shared with every member of a family
type FamilyAlbum struct {
	Base
	Name          string `db:"name" json:"name" validate:"required"`
	Description   string `db:"description" json:"description"`
	CoverPhotoURL string `db:"cover_photo_url" json:"coverPhotoUrl"`
	Date          string `db:"album_date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	FamilyID      string `db:"family_id" json:"familyId" validate:"required"`
	CreatedBy     string `db:"created_by" json:"createdBy" validate:"required"`
}
