package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familyphotos/internal/credentials"
	"familyphotos/internal/identity"
	"familyphotos/internal/schema"
)

func TestCreateAndJoinFamily(t *testing.T) {
	env := newTestEnv(t)
	owner, guest := userCtx("u1"), userCtx("u2")

	created, err := env.families.CreateFamily(owner, "  Los García  ")
	require.NoError(t, err)
	assert.Equal(t, "Los García", created.Family.Name)
	assert.Len(t, created.Family.FamilyCode, credentials.FamilyCodeLength)
	assert.True(t, created.Member.IsAdmin)
	assert.Equal(t, "u1", created.Member.UserID)

	joined, err := env.families.JoinFamily(guest, "  "+strings.ToLower(created.Family.FamilyCode)+" ")
	require.NoError(t, err)
	assert.Equal(t, created.Family.ID, joined.Family.ID)
	assert.False(t, joined.Member.IsAdmin)
	assert.Equal(t, "u2@example.com", joined.Member.UserEmail)

	_, err = env.families.JoinFamily(guest, created.Family.FamilyCode)
	var conflict *schema.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = env.families.JoinFamily(guest, "ZZZZZZ")
	var invalid *schema.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "familyCode", invalid.Field)

	_, err = env.families.JoinFamily(context.Background(), created.Family.FamilyCode)
	assert.ErrorIs(t, err, schema.ErrUnauthorized)
}

func TestCreateFamilyRetriesCodeCollisions(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")

	codes := []string{"AAAAAA", "AAAAAA", "AAAAAA", "BBBBBB"}
	env.families.newCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	first, err := env.families.CreateFamily(ctx, "First")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.Family.FamilyCode)

	second, err := env.families.CreateFamily(ctx, "Second")
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.Family.FamilyCode)
	assert.Empty(t, codes)
}

func TestCreateFamilyGivesUpAfterRepeatedCollisions(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")

	calls := 0
	env.families.newCode = func() (string, error) {
		calls++
		return "CCCCCC", nil
	}
	_, err := env.families.CreateFamily(ctx, "First")
	require.NoError(t, err)

	calls = 0
	_, err = env.families.CreateFamily(ctx, "Second")
	assert.ErrorIs(t, err, schema.ErrConflict)
	assert.Equal(t, familyCodeAttempts, calls)
}

func TestCreateFamilyRollsBackWhenAdminInsertFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")

	_, err := env.db.Exec(`CREATE TRIGGER reject_members BEFORE INSERT ON family_members
BEGIN SELECT RAISE(ABORT, 'members unavailable'); END`)
	require.NoError(t, err)

	_, err = env.families.CreateFamily(ctx, "Orphan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to add family admin")

	families, err := env.catalog.Families.List(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestCreateFamilyRequiresName(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.families.CreateFamily(userCtx("u1"), "   ")
	assert.ErrorIs(t, err, schema.ErrValidation)
}

func TestMembershipWorkflows(t *testing.T) {
	env := newTestEnv(t)
	u1, u2, u3 := userCtx("u1"), userCtx("u2"), userCtx("u3")

	a, err := env.families.CreateFamily(u1, "A")
	require.NoError(t, err)
	b, err := env.families.CreateFamily(u2, "B")
	require.NoError(t, err)
	_, err = env.families.JoinFamily(u2, a.Family.FamilyCode)
	require.NoError(t, err)

	_, err = env.albums.CreateFamilyAlbum(u1, a.Family.ID, AlbumInput{Name: "Verano"})
	require.NoError(t, err)
	_, err = env.albums.CreateFamilyAlbum(u2, b.Family.ID, AlbumInput{Name: "Navidad"})
	require.NoError(t, err)

	families, err := env.families.UserFamilies(u2)
	require.NoError(t, err)
	require.Len(t, families, 2)
	assert.Equal(t, b.Family.ID, families[0].Family.ID)
	assert.Equal(t, a.Family.ID, families[1].Family.ID)

	albums, err := env.families.FamilyAlbums(u2)
	require.NoError(t, err)
	names := []string{}
	for _, album := range albums {
		names = append(names, album.Name)
	}
	assert.ElementsMatch(t, []string{"Verano", "Navidad"}, names)

	members, err := env.families.Members(u1, a.Family.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = env.families.Members(u3, a.Family.ID)
	assert.ErrorIs(t, err, schema.ErrUnauthorized)
	_, err = env.albums.CreateFamilyAlbum(u3, a.Family.ID, AlbumInput{Name: "Intruso"})
	assert.ErrorIs(t, err, schema.ErrUnauthorized)

	require.NoError(t, env.families.LeaveFamily(u2, a.Family.ID))
	families, err = env.families.UserFamilies(u2)
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, b.Family.ID, families[0].Family.ID)

	err = env.families.LeaveFamily(u2, a.Family.ID)
	assert.ErrorIs(t, err, schema.ErrUnauthorized)

	// leaving keeps the family and its albums
	family, err := env.catalog.Families.Get(u1, a.Family.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", family.Name)
}

func TestUserFamiliesSkipsDeletedFamilies(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")

	created, err := env.families.CreateFamily(ctx, "Gone")
	require.NoError(t, err)
	require.NoError(t, env.catalog.Families.Delete(ctx, created.Family.ID))

	families, err := env.families.UserFamilies(ctx)
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestInvite(t *testing.T) {
	env := newTestEnv(t)
	u1 := userCtx("u1")

	created, err := env.families.CreateFamily(u1, "Los García")
	require.NoError(t, err)

	require.NoError(t, env.families.Invite(u1, created.Family.ID, " abuela@example.com "))
	require.Len(t, env.invites.sent, 1)
	assert.Equal(t, invite{
		To:      "abuela@example.com",
		Inviter: "User u1",
		Family:  "Los García",
		Code:    created.Family.FamilyCode,
	}, env.invites.sent[0])

	err = env.families.Invite(u1, created.Family.ID, "not-an-email")
	var invalid *schema.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "email", invalid.Field)

	err = env.families.Invite(userCtx("u9"), created.Family.ID, "x@example.com")
	assert.ErrorIs(t, err, schema.ErrUnauthorized)
	assert.Len(t, env.invites.sent, 1)
}

func TestMemberEmail(t *testing.T) {
	tests := []struct {
		email, fallback, want string
	}{
		{"a@example.com", "Ana", "a@example.com"},
		{"", "Ana", "Ana"},
	}
	for _, tt := range tests {
		if got := memberEmail(tt.email, tt.fallback); got != tt.want {
			t.Errorf("memberEmail(%q, %q) = %q, want %q", tt.email, tt.fallback, got, tt.want)
		}
	}
}

func TestProfileLazyCreateAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")

	profile, err := env.profiles.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.UserID)
	assert.Equal(t, "User u1", profile.Name)
	assert.Equal(t, "u1@example.com", profile.Email)

	again, err := env.profiles.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, again.ID)

	phone := "+34 600 000 000"
	updated, err := env.profiles.Update(ctx, ProfileUpdate{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)
	assert.Equal(t, "User u1", updated.Name)

	bad := "25/12/2024"
	_, err = env.profiles.Update(ctx, ProfileUpdate{BirthDate: &bad})
	assert.ErrorIs(t, err, schema.ErrValidation)

	_, err = env.profiles.Get(context.Background())
	assert.True(t, errors.Is(err, schema.ErrUnauthorized))
}

func TestProfileWithoutEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := identity.WithUser(context.Background(), &identity.User{ID: "u9", Name: "Ana"})

	profile, err := env.profiles.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u9", profile.UserID)
	assert.Equal(t, "Ana", profile.Name)
	assert.Empty(t, profile.Email)

	bad := "not-an-email"
	_, err = env.profiles.Update(ctx, ProfileUpdate{Email: &bad})
	assert.ErrorIs(t, err, schema.ErrValidation)

	good := "ana@example.com"
	updated, err := env.profiles.Update(ctx, ProfileUpdate{Email: &good})
	require.NoError(t, err)
	assert.Equal(t, good, updated.Email)
}
