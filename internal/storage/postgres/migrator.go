package postgres

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	migrationsDir     = "sql/migrations"
	migrationLockKey  = int64(0x43524d)
	migrationTimeout  = 5 * time.Second
	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS crm_schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    checksum TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	migrationFileRe = regexp.MustCompile(`^(\d+)_(\w+)\.(up|down)\.sql$`)

	errStoreNotInitialized = errors.New("postgres store is not initialized")
)

// ErrMigrationChecksum - применённая миграция была изменена после применения.
var ErrMigrationChecksum = errors.New("migration checksum mismatch")

// Migration - пара up/down скриптов одной версии схемы.
type Migration struct {
	Version  int64
	Name     string
	Up       string
	Down     string
	Checksum string
}

func (m Migration) label() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// MigrationState описывает состояние схемы.
type MigrationState struct {
	Version int64
	Applied int
	Pending []string
}

type appliedMigration struct {
	version  int64
	checksum string
}

// MigrateUp применяет pending-миграции по возрастанию версии; steps=0 применяет все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withMigrationLock(ctx, func(conn *sql.Conn, migrations []Migration) error {
		applied, err := appliedMigrations(ctx, conn)
		if err != nil {
			return err
		}
		if err := verifyChecksums(migrations, applied); err != nil {
			return err
		}

		done := make(map[int64]bool, len(applied))
		for _, a := range applied {
			done[a.version] = true
		}

		count := 0
		for _, m := range migrations {
			if done[m.Version] {
				continue
			}
			if steps > 0 && count == steps {
				break
			}
			if err := runMigrationStep(ctx, conn, m, true); err != nil {
				return err
			}
			count++
		}
		return nil
	})
}

// MigrateDown откатывает последние применённые миграции; steps<=0 означает один шаг.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	steps = max(steps, 1)
	return s.withMigrationLock(ctx, func(conn *sql.Conn, migrations []Migration) error {
		applied, err := appliedMigrations(ctx, conn)
		if err != nil {
			return err
		}

		byVersion := make(map[int64]Migration, len(migrations))
		for _, m := range migrations {
			byVersion[m.Version] = m
		}

		for i := len(applied) - 1; i >= 0 && steps > 0; i-- {
			m, ok := byVersion[applied[i].version]
			if !ok {
				return fmt.Errorf("cannot rollback unknown migration version %d", applied[i].version)
			}
			if err := runMigrationStep(ctx, conn, m, false); err != nil {
				return err
			}
			steps--
		}
		return nil
	})
}

// MigrationStatus возвращает текущую версию, число применённых и список ожидающих миграций.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, errStoreNotInitialized
	}
	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return MigrationState{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	conn, err := s.db.Conn(queryCtx)
	if err != nil {
		return MigrationState{}, fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(queryCtx, migrationTableDDL); err != nil {
		return MigrationState{}, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedMigrations(queryCtx, conn)
	if err != nil {
		return MigrationState{}, err
	}
	return buildMigrationState(migrations, applied), nil
}

func buildMigrationState(migrations []Migration, applied []appliedMigration) MigrationState {
	state := MigrationState{Applied: len(applied)}
	done := make(map[int64]bool, len(applied))
	for _, a := range applied {
		done[a.version] = true
		state.Version = max(state.Version, a.version)
	}
	for _, m := range migrations {
		if !done[m.Version] {
			state.Pending = append(state.Pending, m.label())
		}
	}
	return state
}

// withMigrationLock держит advisory lock на выделенном соединении, чтобы параллельные
// экземпляры сервиса не применяли миграции одновременно.
func (s *Store) withMigrationLock(ctx context.Context, fn func(*sql.Conn, []Migration) error) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return fn(conn, migrations)
}

// runMigrationStep выполняет скрипт и правит журнал миграций в одной транзакции.
func runMigrationStep(ctx context.Context, conn *sql.Conn, m Migration, up bool) (err error) {
	direction, script := "down", m.Down
	if up {
		direction, script = "up", m.Up
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s migration %s: %w", direction, m.label(), err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("execute %s migration %s: %w", direction, m.label(), err)
	}

	if up {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO crm_schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`,
			m.Version, m.Name, m.Checksum)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM crm_schema_migrations WHERE version = $1`, m.Version)
	}
	if err != nil {
		return fmt.Errorf("record %s migration %s: %w", direction, m.label(), err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %s: %w", direction, m.label(), err)
	}
	return nil
}

// appliedMigrations возвращает журнал по возрастанию версии.
func appliedMigrations(ctx context.Context, conn *sql.Conn) ([]appliedMigration, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version, checksum FROM crm_schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []appliedMigration
	for rows.Next() {
		var a appliedMigration
		if err := rows.Scan(&a.version, &a.checksum); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied = append(applied, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

func verifyChecksums(migrations []Migration, applied []appliedMigration) error {
	known := make(map[int64]Migration, len(migrations))
	for _, m := range migrations {
		known[m.Version] = m
	}
	for _, a := range applied {
		m, ok := known[a.version]
		if ok && m.Checksum != a.checksum {
			return fmt.Errorf("%w: %s", ErrMigrationChecksum, m.label())
		}
	}
	return nil
}

func parseMigrationFile(base string) (version int64, name string, up bool, err error) {
	parts := migrationFileRe.FindStringSubmatch(base)
	if parts == nil {
		return 0, "", false, fmt.Errorf("invalid migration file name: %s", base)
	}
	version, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", false, fmt.Errorf("parse migration version from %s: %w", base, err)
	}
	return version, parts[2], parts[3] == "up", nil
}

func checksum(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

// loadMigrations читает sql/migrations и собирает пары up/down, отсортированные по версии.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, name, up, err := parseMigrationFile(entry.Name())
		if err != nil {
			return nil, err
		}

		raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", entry.Name(), err)
		}
		script := strings.TrimSpace(string(raw))
		if script == "" {
			return nil, fmt.Errorf("migration file is empty: %s", entry.Name())
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if m.Name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.Name, name)
		}

		target := &m.Down
		if up {
			target = &m.Up
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate migration file for %s", m.label())
		}
		*target = script
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.label())
		}
		m.Checksum = checksum(m.Up)
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}
