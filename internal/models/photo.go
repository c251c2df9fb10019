package models

// PhotoFields are the attributes shared by personal and family photos.
// Only the object store key is persisted, never the image bytes.
type PhotoFields struct {
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	S3Key        string     `db:"s3_key" json:"s3Key" validate:"required"`
	ThumbnailKey string     `db:"thumbnail_key" json:"thumbnailKey"`
	FileSize     int64      `db:"file_size" json:"fileSize" validate:"gte=0"`
	MimeType     string     `db:"mime_type" json:"mimeType"`
	Width        int        `db:"width" json:"width" validate:"gte=0"`
	Height       int        `db:"height" json:"height" validate:"gte=0"`
	CaptureDate  string     `db:"capture_date" json:"captureDate" validate:"omitempty,datetime=2006-01-02"`
	Location     string     `db:"location" json:"location"`
	UploadedBy   string     `db:"uploaded_by" json:"uploadedBy"`
	AlbumID      string     `db:"album_id" json:"albumId" validate:"required"`
	Tags         StringList `db:"tags" json:"tags"`
}

// Photo belongs to a personal Album
type Photo struct {
	Base
	PhotoFields
}

// FamilyPhoto belongs to a FamilyAlbum
type FamilyPhoto struct {
	Base
	PhotoFields
}

// PhotoData exposes the shared photo attributes of Photo and FamilyPhoto
func (p *PhotoFields) PhotoData() *PhotoFields {
	return p
}
