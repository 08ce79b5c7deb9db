package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"bustogether/internal/observability"
	dbconfig "bustogether/pkg/database"
	"bustogether/pkg/interfaces"
	"bustogether/pkg/types"
)

var _ interfaces.RouteRepository = (*Manager)(nil)

// ErrManagerClosed is returned for writes after Close
var ErrManagerClosed = errors.New("database manager is closed")

// Manager persists routes and schedules in SQLite
// ARCHITECTURAL DISCOVERY: Reads go straight to the pool while every write is funneled
// through one goroutine, so SQLite never sees two writers at once
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex // TECHNICAL: Protect closed status

	retryDelay time.Duration
	logger     *slog.Logger
}

// writeOperation represents a database write operation
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies embedded migrations and starts the writer
func NewManager(config *dbconfig.Config) (*Manager, error) {
	if config == nil {
		config = dbconfig.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	if dir := filepath.Dir(config.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbconfig.DSN(config.DatabasePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// FUNCTIONAL DISCOVERY: Connection pool configuration critical for concurrent reads
	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	migrations := dbconfig.NewMigrationManager(db)
	if err := migrations.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	if err := migrations.ValidateSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database schema invalid: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
		retryDelay:   time.Second,
		logger:       observability.WithComponent("database"),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			// FUNCTIONAL DISCOVERY: Only lock contention is worth a retry; constraint
			// failures would fail the same way again
			if isBusy(err) {
				m.logger.Warn("database busy, retrying write", "delay", m.retryDelay, "error", err)
				time.Sleep(m.retryDelay)
				err = op.operation(m.db)
				if err != nil {
					m.logger.Error("database write failed after retry", "error", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			m.logger.Info("database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.shutdown:
		return ErrManagerClosed
	}

	select {
	case err := <-result:
		return err
	case <-m.shutdown:
		return ErrManagerClosed
	}
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

func isConstraint(err error, extended sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == extended
}

// CreateRoute inserts a new route
func (m *Manager) CreateRoute(ctx context.Context, route *types.Route) error {
	if err := route.Validate(); err != nil {
		return err
	}
	if route.CreatedAt.IsZero() {
		route.CreatedAt = time.Now().UTC()
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			"INSERT INTO routes (id, name, created_at) VALUES (?, ?, ?)",
			route.ID, route.Name, route.CreatedAt,
		)
		if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) || isConstraint(err, sqlite3.ErrConstraintUnique) {
			return interfaces.ErrRouteExists
		}
		if err != nil {
			return fmt.Errorf("failed to insert route: %w", err)
		}
		return nil
	})
}

// GetRoute returns ErrRouteNotFound when the route does not exist
func (m *Manager) GetRoute(ctx context.Context, routeID string) (*types.Route, error) {
	var route types.Route
	err := m.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM routes WHERE id = ?", routeID,
	).Scan(&route.ID, &route.Name, &route.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query route: %w", err)
	}
	return &route, nil
}

// ListRoutes returns every route ordered by id
func (m *Manager) ListRoutes(ctx context.Context) ([]*types.Route, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT id, name, created_at FROM routes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var routes []*types.Route
	for rows.Next() {
		var route types.Route
		if err := rows.Scan(&route.ID, &route.Name, &route.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, &route)
	}
	return routes, rows.Err()
}

// UpdateRoute renames a route
func (m *Manager) UpdateRoute(ctx context.Context, route *types.Route) error {
	if err := route.Validate(); err != nil {
		return err
	}
	return m.executeWrite(ctx, func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, "UPDATE routes SET name = ? WHERE id = ?", route.Name, route.ID)
		if err != nil {
			return fmt.Errorf("failed to update route: %w", err)
		}
		return requireAffected(result, interfaces.ErrRouteNotFound)
	})
}

// DeleteRoute removes a route; its schedules go with it through the cascade
func (m *Manager) DeleteRoute(ctx context.Context, routeID string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, "DELETE FROM routes WHERE id = ?", routeID)
		if err != nil {
			return fmt.Errorf("failed to delete route: %w", err)
		}
		return requireAffected(result, interfaces.ErrRouteNotFound)
	})
}

// CreateSchedule validates and inserts a schedule, assigning an id when none is set
func (m *Manager) CreateSchedule(ctx context.Context, schedule *types.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}

	// TECHNICAL DISCOVERY: JSON serialization for weekdays keeps the schema flat
	days, err := json.Marshal(schedule.Days)
	if err != nil {
		return fmt.Errorf("failed to marshal days: %w", err)
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO schedules (id, route_id, days, start_time, end_time, chat_name, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			schedule.ID, schedule.RouteID, string(days), schedule.Start, schedule.End,
			schedule.ChatName, schedule.Active, schedule.CreatedAt,
		)
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return interfaces.ErrRouteNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to insert schedule: %w", err)
		}
		return nil
	})
}

// GetSchedule returns ErrScheduleNotFound when the schedule does not exist
func (m *Manager) GetSchedule(ctx context.Context, scheduleID string) (*types.Schedule, error) {
	row := m.db.QueryRowContext(ctx, scheduleSelect+" WHERE id = ?", scheduleID)
	schedule, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	return schedule, nil
}

// UpdateSchedule replaces every mutable field of a schedule
func (m *Manager) UpdateSchedule(ctx context.Context, schedule *types.Schedule) error {
	if schedule.ID == "" {
		return types.ErrMissingScheduleID
	}
	if err := schedule.Validate(); err != nil {
		return err
	}
	days, err := json.Marshal(schedule.Days)
	if err != nil {
		return fmt.Errorf("failed to marshal days: %w", err)
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, `
			UPDATE schedules
			SET route_id = ?, days = ?, start_time = ?, end_time = ?, chat_name = ?, is_active = ?
			WHERE id = ?`,
			schedule.RouteID, string(days), schedule.Start, schedule.End,
			schedule.ChatName, schedule.Active, schedule.ID,
		)
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return interfaces.ErrRouteNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update schedule: %w", err)
		}
		return requireAffected(result, interfaces.ErrScheduleNotFound)
	})
}

// DeleteSchedule removes one schedule
func (m *Manager) DeleteSchedule(ctx context.Context, scheduleID string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", scheduleID)
		if err != nil {
			return fmt.Errorf("failed to delete schedule: %w", err)
		}
		return requireAffected(result, interfaces.ErrScheduleNotFound)
	})
}

// GetSchedulesForRoute returns a route's schedules ordered by start time
func (m *Manager) GetSchedulesForRoute(ctx context.Context, routeID string) ([]*types.Schedule, error) {
	return m.querySchedules(ctx, scheduleSelect+" WHERE route_id = ? ORDER BY start_time, id", routeID)
}

// GetAllSchedules returns every schedule, active or not
func (m *Manager) GetAllSchedules(ctx context.Context) ([]*types.Schedule, error) {
	return m.querySchedules(ctx, scheduleSelect+" ORDER BY route_id, start_time, id")
}

const scheduleSelect = `SELECT id, route_id, days, start_time, end_time, chat_name, is_active, created_at FROM schedules`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*types.Schedule, error) {
	var schedule types.Schedule
	var days string
	if err := row.Scan(
		&schedule.ID, &schedule.RouteID, &days, &schedule.Start, &schedule.End,
		&schedule.ChatName, &schedule.Active, &schedule.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(days), &schedule.Days); err != nil {
		return nil, fmt.Errorf("schedule %s has malformed days %q: %w", schedule.ID, days, err)
	}
	return &schedule, nil
}

func (m *Manager) querySchedules(ctx context.Context, query string, args ...interface{}) ([]*types.Schedule, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	schedules := make([]*types.Schedule, 0)
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

// HealthCheck validates database connectivity
// FUNCTIONAL DISCOVERY: Health check validates both connectivity and basic operations
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM routes").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// Close shuts down the database manager
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	// ARCHITECTURAL DISCOVERY: Graceful shutdown requires careful goroutine coordination
	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
