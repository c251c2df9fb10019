package schema

import (
	"familyphotos/internal/models"
)

// Model names as exposed over the data API
const (
	ModelUserProfile   = "UserProfile"
	ModelFamily        = "Family"
	ModelFamilyMember  = "FamilyMember"
	ModelAlbum         = "Album"
	ModelFamilyAlbum   = "FamilyAlbum"
	ModelPhoto         = "Photo"
	ModelFamilyPhoto   = "FamilyPhoto"
	ModelComment       = "Comment"
	ModelFamilyComment = "FamilyComment"
	ModelLike          = "Like"
	ModelFamilyLike    = "FamilyLike"
)

// Catalog holds a typed collection for every entity of the photo sharing schema
type Catalog struct {
	Store *Store

	Profiles       *Collection[models.UserProfile, *models.UserProfile]
	Families       *Collection[models.Family, *models.Family]
	Members        *Collection[models.FamilyMember, *models.FamilyMember]
	Albums         *Collection[models.Album, *models.Album]
	FamilyAlbums   *Collection[models.FamilyAlbum, *models.FamilyAlbum]
	Photos         *Collection[models.Photo, *models.Photo]
	FamilyPhotos   *Collection[models.FamilyPhoto, *models.FamilyPhoto]
	Comments       *Collection[models.Comment, *models.Comment]
	FamilyComments *Collection[models.FamilyComment, *models.FamilyComment]
	Likes          *Collection[models.Like, *models.Like]
	FamilyLikes    *Collection[models.FamilyLike, *models.FamilyLike]
}

// NewCatalog registers the schema on s. Referenced models are registered first.
func NewCatalog(s *Store) (*Catalog, error) {
	c := &Catalog{Store: s}
	var err error

	if c.Profiles, err = Register[models.UserProfile](s, ModelUserProfile, "user_profiles",
		OwnerKey("userId")); err != nil {
		return nil, err
	}
	if c.Families, err = Register[models.Family](s, ModelFamily, "families",
		OwnerKey("createdBy"), Immutable("familyCode")); err != nil {
		return nil, err
	}
	if c.Members, err = Register[models.FamilyMember](s, ModelFamilyMember, "family_members",
		OwnerKey("familyId"), Immutable("userId"), References("familyId", ModelFamily)); err != nil {
		return nil, err
	}
	if c.Albums, err = Register[models.Album](s, ModelAlbum, "albums",
		OwnerKey("createdBy")); err != nil {
		return nil, err
	}
	if c.FamilyAlbums, err = Register[models.FamilyAlbum](s, ModelFamilyAlbum, "family_albums",
		OwnerKey("familyId"), References("familyId", ModelFamily)); err != nil {
		return nil, err
	}
	if c.Photos, err = Register[models.Photo](s, ModelPhoto, "photos",
		OwnerKey("albumId"), Immutable("s3Key"), References("albumId", ModelAlbum)); err != nil {
		return nil, err
	}
	if c.FamilyPhotos, err = Register[models.FamilyPhoto](s, ModelFamilyPhoto, "family_photos",
		OwnerKey("albumId"), Immutable("s3Key"), References("albumId", ModelFamilyAlbum)); err != nil {
		return nil, err
	}
	if c.Comments, err = Register[models.Comment](s, ModelComment, "comments",
		OwnerKey("photoId"), References("photoId", ModelPhoto)); err != nil {
		return nil, err
	}
	if c.FamilyComments, err = Register[models.FamilyComment](s, ModelFamilyComment, "family_comments",
		OwnerKey("photoId"), References("photoId", ModelFamilyPhoto)); err != nil {
		return nil, err
	}
	if c.Likes, err = Register[models.Like](s, ModelLike, "likes",
		OwnerKey("photoId"), Immutable("userId"), OwnerRead("userId"), References("photoId", ModelPhoto)); err != nil {
		return nil, err
	}
	if c.FamilyLikes, err = Register[models.FamilyLike](s, ModelFamilyLike, "family_likes",
		OwnerKey("photoId"), Immutable("userId"), OwnerRead("userId"), References("photoId", ModelFamilyPhoto)); err != nil {
		return nil, err
	}
	return c, nil
}
