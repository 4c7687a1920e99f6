package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/filters"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/pagination"
)

const userColumns = `users.id, users.email, users.username, users.password_hash, users.active,
	users.email_verified_at, users.created_at, users.updated_at, users.deleted_at`

const profileColumns = `id, user_id, first_name, last_name, middle_name, mobile_number,
	telephone_number, sex, birthday, address_line_1, address_line_2, address_line_3,
	district, city, province, postal_code, country_id, profile_picture_path, created_at, updated_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// scanUserRow populates a User model from a row selecting userColumns
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.Active,
		&user.EmailVerifiedAt, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]models.User, error) {
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return users, nil
}

func scanProfileRow(scanner rowScanner) (*models.UserProfile, error) {
	var p models.UserProfile

	err := scanner.Scan(
		&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.MiddleName, &p.MobileNumber,
		&p.TelephoneNumber, &p.Sex, &p.Birthday, &p.AddressLine1, &p.AddressLine2, &p.AddressLine3,
		&p.District, &p.City, &p.Province, &p.PostalCode, &p.CountryID, &p.ProfilePicturePath,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &p, nil
}

// userMapper scans paginated rows
var userMapper = pagination.Mapper[models.User]{
	Scan: func(row pgx.CollectableRow) (models.User, error) {
		user, err := scanUserRow(row)
		if err != nil {
			return models.User{}, err
		}
		return *user, nil
	},
	ID: func(u models.User) int64 { return u.ID },
}

// ListQuery is the base query for user listings: every user that is not soft deleted.
func (r *UserRepository) ListQuery() filters.Query {
	b := psql.Select(userColumns).
		From("users").
		Where(sq.Eq{"users.deleted_at": nil})
	return filters.NewQuery("users", b)
}

// SearchQuery matches term as a prefix of email or username and as a
// substring of the first, middle or last name. The prefix match can use
// the varchar_pattern_ops indexes; the name match cannot.
func (r *UserRepository) SearchQuery(term string) filters.Query {
	escaped := EscapeLike(strings.TrimSpace(term))
	prefix := strings.ToLower(escaped) + "%"
	substring := "%" + escaped + "%"

	return r.ListQuery().
		Join("user_profiles", "user_profiles.user_id = users.id").
		Where(sq.Or{
			sq.Like{"users.email": prefix},
			sq.Like{"users.username": prefix},
			sq.ILike{"user_profiles.first_name": substring},
			sq.ILike{"user_profiles.last_name": substring},
			sq.ILike{"user_profiles.middle_name": substring},
		})
}

// Paginate runs q with the requested strategy and eager-loads profiles.
func (r *UserRepository) Paginate(ctx context.Context, v pagination.Variant, q filters.Query, req pagination.Request) (pagination.Result[models.User], error) {
	result, err := pagination.Paginate(ctx, r.db.Pool, v, q, req, userMapper)
	if err != nil {
		return nil, err
	}

	if err := r.loadProfiles(ctx, result.Items()); err != nil {
		return nil, err
	}
	return result, nil
}

// loadProfiles attaches profiles to users in place with a single query.
func (r *UserRepository) loadProfiles(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}

	ids := make([]int64, len(users))
	index := make(map[int64]int, len(users))
	for i, u := range users {
		ids[i] = u.ID
		index[u.ID] = i
	}

	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = ANY($1) AND deleted_at IS NULL`
	rows, err := r.db.Pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		profile, err := scanProfileRow(rows)
		if err != nil {
			return fmt.Errorf("failed to scan profile: %w", err)
		}
		if i, ok := index[profile.UserID]; ok {
			users[i].Profile = profile
		}
	}
	return rows.Err()
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE users.id = $1 AND users.deleted_at IS NULL`

	user, err := scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := r.loadRelations(ctx, r.db.Pool, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE users.email = $1 AND users.deleted_at IS NULL`

	user, err := scanUserRow(r.db.Pool.QueryRow(ctx, query, strings.ToLower(email)))
	if err != nil {
		return nil, err
	}

	if err := r.loadRelations(ctx, r.db.Pool, user); err != nil {
		return nil, err
	}
	return user, nil
}

// EmailExists checks every row, soft-deleted ones included.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", strings.ToLower(email))
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", strings.ToLower(username))
}

func (r *UserRepository) exists(ctx context.Context, column, value string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE ` + column + ` = $1)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, value).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// Create inserts the user, its profile and its roles in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User, roles []string) (*models.User, error) {
	var created *models.User

	err := r.db.WithRetryTransaction(ctx, database.MaxDeadlockAttempts, func(tx pgx.Tx) error {
		query := `
			INSERT INTO users (email, username, password_hash, active, email_verified_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING ` + userColumns

		u, err := scanUserRow(tx.QueryRow(ctx, query,
			strings.ToLower(user.Email), strings.ToLower(user.Username), user.PasswordHash,
			user.Active, user.EmailVerifiedAt,
		))
		if err != nil {
			return err
		}

		profile := user.Profile
		if profile == nil {
			profile = &models.UserProfile{}
		}
		p, err := insertProfile(ctx, tx, u.ID, profile)
		if err != nil {
			return err
		}
		u.Profile = p

		if err := assignRoles(ctx, tx, u.ID, roles); err != nil {
			return err
		}
		u.Roles, err = loadRoles(ctx, tx, u.ID)
		if err != nil {
			return err
		}

		created = u
		return nil
	})
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return created, nil
}

func insertProfile(ctx context.Context, tx DBTX, userID int64, p *models.UserProfile) (*models.UserProfile, error) {
	query, args, err := psql.Insert("user_profiles").
		SetMap(map[string]any{
			"user_id":              userID,
			"first_name":           p.FirstName,
			"last_name":            p.LastName,
			"middle_name":          p.MiddleName,
			"mobile_number":        p.MobileNumber,
			"telephone_number":     p.TelephoneNumber,
			"sex":                  p.Sex,
			"birthday":             p.Birthday,
			"address_line_1":       p.AddressLine1,
			"address_line_2":       p.AddressLine2,
			"address_line_3":       p.AddressLine3,
			"district":             p.District,
			"city":                 p.City,
			"province":             p.Province,
			"postal_code":          p.PostalCode,
			"country_id":           p.CountryID,
			"profile_picture_path": p.ProfilePicturePath,
		}).
		Suffix("RETURNING " + profileColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build profile insert: %w", err)
	}
	return scanProfileRow(tx.QueryRow(ctx, query, args...))
}

// Update applies changes in one transaction. Roles are replaced when
// changes.Roles is non-nil.
func (r *UserRepository) Update(ctx context.Context, id int64, changes models.UserChanges) (*models.User, error) {
	var updated *models.User

	err := r.db.WithRetryTransaction(ctx, database.MaxDeadlockAttempts, func(tx pgx.Tx) error {
		set := userChangeSet(changes)
		set["updated_at"] = time.Now()

		query, args, err := psql.Update("users").
			SetMap(set).
			Where(sq.Eq{"id": id, "deleted_at": nil}).
			Suffix("RETURNING " + userColumns).
			ToSql()
		if err != nil {
			return fmt.Errorf("build user update: %w", err)
		}

		u, err := scanUserRow(tx.QueryRow(ctx, query, args...))
		if err != nil {
			return err
		}

		if !changes.Profile.IsEmpty() {
			if err := updateProfile(ctx, tx, id, changes.Profile); err != nil {
				return err
			}
		}

		if changes.Roles != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM model_has_roles WHERE model_id = $1`, id); err != nil {
				return err
			}
			if err := assignRoles(ctx, tx, id, changes.Roles); err != nil {
				return err
			}
		}

		if err := r.loadRelations(ctx, tx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return updated, nil
}

func userChangeSet(c models.UserChanges) map[string]any {
	set := map[string]any{}
	if c.Email != nil {
		set["email"] = strings.ToLower(*c.Email)
	}
	if c.Username != nil {
		set["username"] = strings.ToLower(*c.Username)
	}
	if c.PasswordHash != nil {
		set["password_hash"] = *c.PasswordHash
	}
	if c.Active != nil {
		set["active"] = *c.Active
	}
	if c.EmailVerified != nil {
		if *c.EmailVerified {
			set["email_verified_at"] = sq.Expr("COALESCE(email_verified_at, NOW())")
		} else {
			set["email_verified_at"] = nil
		}
	}
	return set
}

func profileChangeSet(c models.ProfileChanges) map[string]any {
	set := map[string]any{}
	put := func(col string, v any, ok bool) {
		if ok {
			set[col] = v
		}
	}
	put("first_name", c.FirstName, c.FirstName != nil)
	put("last_name", c.LastName, c.LastName != nil)
	put("middle_name", c.MiddleName, c.MiddleName != nil)
	put("mobile_number", c.MobileNumber, c.MobileNumber != nil)
	put("telephone_number", c.TelephoneNumber, c.TelephoneNumber != nil)
	put("sex", c.Sex, c.Sex != nil)
	put("birthday", c.Birthday, c.Birthday != nil)
	put("address_line_1", c.AddressLine1, c.AddressLine1 != nil)
	put("address_line_2", c.AddressLine2, c.AddressLine2 != nil)
	put("address_line_3", c.AddressLine3, c.AddressLine3 != nil)
	put("district", c.District, c.District != nil)
	put("city", c.City, c.City != nil)
	put("province", c.Province, c.Province != nil)
	put("postal_code", c.PostalCode, c.PostalCode != nil)
	put("country_id", c.CountryID, c.CountryID != nil)
	put("profile_picture_path", c.ProfilePicturePath, c.ProfilePicturePath != nil)
	return set
}

func updateProfile(ctx context.Context, tx DBTX, userID int64, changes models.ProfileChanges) error {
	set := profileChangeSet(changes)
	set["updated_at"] = time.Now()

	query, args, err := psql.Update("user_profiles").
		SetMap(set).
		Where(sq.Eq{"user_id": userID, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build profile update: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SoftDelete marks the user and its profile deleted, frees the email and
// username by suffixing them, and drops every access token.
func (r *UserRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	suffix := models.DeletedSuffix + strconv.FormatInt(at.Unix(), 10)

	err := r.db.WithRetryTransaction(ctx, database.MaxDeadlockAttempts, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET email = email || $2, username = username || $2, deleted_at = $3, updated_at = $3
			WHERE id = $1 AND deleted_at IS NULL
		`, id, suffix, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		if _, err := tx.Exec(ctx, `UPDATE user_profiles SET deleted_at = $2 WHERE user_id = $1`, id, at); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM personal_access_tokens WHERE user_id = $1`, id)
		return err
	})
	return database.MapPostgresError(err)
}

// Permissions lists the distinct permission names granted through the user's roles.
func (r *UserRepository) Permissions(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT DISTINCT p.name
		FROM permissions p
		JOIN role_has_permissions rhp ON rhp.permission_id = p.id
		JOIN model_has_roles mhr ON mhr.role_id = rhp.role_id
		WHERE mhr.model_id = $1
		ORDER BY p.name
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListWithPermission returns active users holding permission through any role.
func (r *UserRepository) ListWithPermission(ctx context.Context, permission string) ([]models.User, error) {
	query := `
		SELECT DISTINCT ` + userColumns + `
		FROM users
		JOIN model_has_roles mhr ON mhr.model_id = users.id
		JOIN role_has_permissions rhp ON rhp.role_id = mhr.role_id
		JOIN permissions p ON p.id = rhp.permission_id
		WHERE p.name = $1 AND users.active AND users.deleted_at IS NULL
	`

	rows, err := r.db.Pool.Query(ctx, query, permission)
	if err != nil {
		return nil, fmt.Errorf("failed to query users with permission: %w", err)
	}
	return scanUserRows(rows)
}

func (r *UserRepository) loadRelations(ctx context.Context, db DBTX, user *models.User) error {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1 AND deleted_at IS NULL`
	profile, err := scanProfileRow(db.QueryRow(ctx, query, user.ID))
	switch {
	case err == nil:
		user.Profile = profile
	case !errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("failed to load profile: %w", err)
	}

	user.Roles, err = loadRoles(ctx, db, user.ID)
	return err
}

func loadRoles(ctx context.Context, db DBTX, userID int64) ([]models.Role, error) {
	rows, err := db.Query(ctx, `
		SELECT r.id, r.name
		FROM roles r
		JOIN model_has_roles mhr ON mhr.role_id = r.id
		WHERE mhr.model_id = $1
		ORDER BY r.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.Role])
}

func assignRoles(ctx context.Context, db DBTX, userID int64, roles []string) error {
	if len(roles) == 0 {
		return nil
	}
	_, err := db.Exec(ctx, `
		INSERT INTO model_has_roles (role_id, model_id)
		SELECT id, $1 FROM roles WHERE name = ANY($2)
		ON CONFLICT DO NOTHING
	`, userID, roles)
	return err
}

// EscapeLike escapes the LIKE metacharacters of s.
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
