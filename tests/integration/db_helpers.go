package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/repositories"
	"github.com/BradenHooton/roster/pkg/auth"
)

// MigrationsDir is the goose directory relative to this package
const MigrationsDir = "../../migrations"

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("roster"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := database.FromPool(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))

	migrationsDir, err := filepath.Abs(MigrationsDir)
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get migrations path: %w", err)
	}

	// Suppress goose logs
	goose.SetLogger(log.New(io.Discard, "", 0))

	if err := db.Migrate(ctx, migrationsDir); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         db,
	}, nil
}

// SetupTestRedis starts a Redis testcontainer for the schema cache
func SetupTestRedis(ctx context.Context) (testcontainers.Container, *redis.Client, error) {
	container, err := tcredis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, fmt.Errorf("failed to get redis connection string: %w", err)
	}

	opts, err := redis.ParseURL(uri)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return container, redis.NewClient(opts), nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates every table that tests write to. Seeded roles,
// permissions and countries are kept.
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"audit_logs",
		"password_reset_tokens",
		"email_verification_tokens",
		"personal_access_tokens",
		"model_has_roles",
		"user_profiles",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// SeedUser inserts a verified, active user holding roles
func SeedUser(ctx context.Context, db *database.DB, email, username, password string, roles ...string) (*models.User, error) {
	return SeedUserWithProfile(ctx, db, email, username, password,
		models.UserProfile{FirstName: "Seed", LastName: username}, roles...)
}

// SeedUserWithProfile is SeedUser with explicit profile names
func SeedUserWithProfile(ctx context.Context, db *database.DB, email, username, password string, profile models.UserProfile, roles ...string) (*models.User, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if len(roles) == 0 {
		roles = []string{models.RoleStandardUser}
	}

	now := time.Now()
	user, err := repositories.NewUserRepository(db).Create(ctx, &models.User{
		Email:           email,
		Username:        username,
		PasswordHash:    hashedPassword,
		Active:          true,
		EmailVerifiedAt: &now,
		Profile:         &profile,
	}, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// RoleID looks up a seeded role by name
func RoleID(ctx context.Context, db *database.DB, name string) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&id)
	return id, err
}

// SeedExpiredAccessToken inserts a token that expired an hour ago
func SeedExpiredAccessToken(ctx context.Context, db *database.DB, userID int64) error {
	_, err := repositories.NewTokenRepository(db).Create(ctx, userID, "expired", "expired-"+fmt.Sprint(userID), time.Now().Add(-time.Hour))
	return err
}
