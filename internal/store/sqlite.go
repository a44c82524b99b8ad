package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore represents the SQLite-backed cadence database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path; the snapshot worker backs it up.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Backup writes a consistent copy of the database to destPath using
// SQLite's VACUUM INTO, which snapshots without blocking writers in WAL mode.
func (s *SQLiteStore) Backup(ctx context.Context, destPath string) error {
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear previous backup: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	return nil
}

// CreateUser registers a user. Email uniqueness is enforced by the schema.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, name, phone string) (*types.User, error) {
	now := time.Now().UTC()
	user := types.User{
		ID:        ulid.Make().String(),
		Email:     email,
		Name:      name,
		Phone:     phone,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, phone, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
	`, user.ID, user.Email, user.Name, nullString(user.Phone), fmtTime(now), fmtTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &user, nil
}

// GetUser returns a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*types.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, phone, active, created_at, updated_at
		FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

// UpdateUser patches name and/or active flag. Deactivation is the only
// removal path; users are never deleted.
func (s *SQLiteStore) UpdateUser(ctx context.Context, id string, name *string, active *bool) (*types.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		user.Name = *name
	}
	if active != nil {
		user.Active = *active
	}
	user.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, active = ?, updated_at = ? WHERE id = ?
	`, user.Name, boolInt(user.Active), fmtTime(user.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}

// GetActiveUsers returns all users with the active flag set, ordered by ID
// for stable scan order across worker ticks.
func (s *SQLiteStore) GetActiveUsers(ctx context.Context) ([]types.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, phone, active, created_at, updated_at
		FROM users WHERE active = 1 ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetPreferences returns a user's notification preferences, falling back to
// defaults (email only, quiet 22:00-07:00 UTC) when none are recorded.
func (s *SQLiteStore) GetPreferences(ctx context.Context, userID string) (*types.NotificationPrefs, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, use_email, use_sms, quiet_from_hour, quiet_to_hour, updated_at
		FROM user_preferences WHERE user_id = ?
	`, userID)

	var p types.NotificationPrefs
	var useEmail, useSMS int
	var updatedAt string
	err := row.Scan(&p.UserID, &useEmail, &useSMS, &p.QuietFromHour, &p.QuietToHour, &updatedAt)
	if err == sql.ErrNoRows {
		defaults := types.DefaultPrefs(userID)
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}

	p.UseEmail = useEmail == 1
	p.UseSMS = useSMS == 1
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// UpdatePreferences upserts a user's notification preferences.
func (s *SQLiteStore) UpdatePreferences(ctx context.Context, prefs types.NotificationPrefs) error {
	if _, err := s.GetUser(ctx, prefs.UserID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, use_email, use_sms, quiet_from_hour, quiet_to_hour, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			use_email = excluded.use_email,
			use_sms = excluded.use_sms,
			quiet_from_hour = excluded.quiet_from_hour,
			quiet_to_hour = excluded.quiet_to_hour,
			updated_at = excluded.updated_at
	`, prefs.UserID, boolInt(prefs.UseEmail), boolInt(prefs.UseSMS),
		prefs.QuietFromHour, prefs.QuietToHour, fmtTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// GetStats returns aggregate store statistics
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	var stats types.StoreStats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&stats.UserCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&stats.TaskCount); err != nil {
		return nil, err
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks WHERE status NOT IN ('completed', 'cancelled')
	`).Scan(&stats.ActiveTasks)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanUser(scanner interface{ Scan(...any) error }) (*types.User, error) {
	var u types.User
	var phone sql.NullString
	var active int
	var createdAt, updatedAt string

	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &phone, &active, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Phone = phone.String
	u.Active = active == 1
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation detects a UNIQUE constraint failure. modernc.org/sqlite
// does not export a typed error for this, so we match the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
