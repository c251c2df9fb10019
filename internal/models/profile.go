package models

// UserProfile holds the editable profile of an identity-provider user.
// There is at most one profile per UserID.
type UserProfile struct {
	Base
	UserID    string `db:"user_id" json:"userId" validate:"required"`
	Name      string `db:"name" json:"name" validate:"required"`
	Email     string `db:"email" json:"email" validate:"omitempty,email"`
	Phone     string `db:"phone" json:"phone"`
	BirthDate string `db:"birth_date" json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
}
