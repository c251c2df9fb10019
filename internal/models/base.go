package models

import "time"

// Base carries the identity and timestamps shared by every entity.
// IDs are UUID strings assigned when the record is created.
type Base struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Meta exposes the shared fields to the data layer
func (b *Base) Meta() *Base {
	return b
}

// DateLayout is the format of calendar date fields such as Album.Date
const DateLayout = "2006-01-02"
