package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/roster/internal/models"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, EscapeLike("100%"))
	assert.Equal(t, `first\_name`, EscapeLike("first_name"))
	assert.Equal(t, `a\\b`, EscapeLike(`a\b`))
	assert.Equal(t, "plain", EscapeLike("plain"))
}

func TestSearchQuery(t *testing.T) {
	r := &UserRepository{}

	sql, args, err := r.SearchQuery(" Ali_ ").Ordered().ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "JOIN user_profiles ON user_profiles.user_id = users.id")
	assert.Contains(t, sql, "users.email LIKE $1")
	assert.Contains(t, sql, "users.username LIKE $2")
	assert.Contains(t, sql, "user_profiles.first_name ILIKE $3")
	assert.Contains(t, sql, "users.deleted_at IS NULL")
	assert.Equal(t, []any{`ali\_%`, `ali\_%`, `%Ali\_%`, `%Ali\_%`, `%Ali\_%`}, args)
}

func TestListQuery(t *testing.T) {
	r := &UserRepository{}
	q := r.ListQuery()

	assert.Equal(t, "users", q.Table)
	sql, args, err := q.Builder.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM users WHERE users.deleted_at IS NULL")
	assert.Empty(t, args)
}

func TestUserChangeSet(t *testing.T) {
	email := "New@Example.com"
	active := false
	set := userChangeSet(models.UserChanges{Email: &email, Active: &active})

	assert.Equal(t, "new@example.com", set["email"])
	assert.Equal(t, false, set["active"])
	assert.NotContains(t, set, "username")

	unverify := false
	set = userChangeSet(models.UserChanges{EmailVerified: &unverify})
	assert.Contains(t, set, "email_verified_at")
	assert.Nil(t, set["email_verified_at"])
}

func TestProfileChangeSet(t *testing.T) {
	city := "Cebu"
	birthday := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)
	set := profileChangeSet(models.ProfileChanges{City: &city, Birthday: &birthday})

	assert.Len(t, set, 2)
	assert.Equal(t, &city, set["city"])
	assert.Equal(t, &birthday, set["birthday"])
}
