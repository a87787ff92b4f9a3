package generation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"dailybrief/internal/storage"
)

const (
	table         = "generation_logs"
	defaultLimit  = 10
	timeLayout    = "2006-01-02T15:04:05.000000000Z"
	columnsSelect = "id, user_id, status, scheduled_at, started_at, completed_at, deadline_at, notebook_id, sources_used_json, error_message, audio_url, updated_at"
)

// Store persists generation logs. Status changes are conditional updates so a
// concurrent or stale writer can never move a log backwards.
type Store struct {
	db  *storage.DB
	now func() time.Time
}

// NewStore wraps the shared database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

// Create records a new scheduled generation for the user.
func (s *Store) Create(ctx context.Context, userID string, deadline time.Time) (*Log, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("create generation: user id is required")
	}
	now := s.now().UTC()
	log := &Log{
		ID:          uuid.NewString(),
		UserID:      userID,
		Status:      StatusScheduled,
		ScheduledAt: now,
		UpdatedAt:   now,
	}
	if !deadline.IsZero() {
		d := deadline.UTC()
		log.DeadlineAt = &d
	}
	query, args, err := sq.Insert(table).
		Columns("id", "user_id", "status", "scheduled_at", "deadline_at", "updated_at").
		Values(log.ID, log.UserID, log.Status, formatTime(now), nullableTime(log.DeadlineAt), formatTime(now)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecWithRetry(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert generation: %w", err)
	}
	return log, nil
}

// GetByID fetches a log by id. It returns (nil, nil) when no log matches.
func (s *Store) GetByID(ctx context.Context, id string) (*Log, error) {
	logs, err := s.query(ctx, sq.Select(columnsSelect).From(table).Where(sq.Eq{"id": id}).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("get generation: %w", err)
	}
	if len(logs) == 0 {
		return nil, nil
	}
	return logs[0], nil
}

// GetForUser fetches a log only when it belongs to the user. Logs owned by
// someone else are reported as missing.
func (s *Store) GetForUser(ctx context.Context, userID, id string) (*Log, error) {
	logs, err := s.query(ctx, sq.Select(columnsSelect).From(table).
		Where(sq.Eq{"id": id, "user_id": userID}).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("get generation: %w", err)
	}
	if len(logs) == 0 {
		return nil, nil
	}
	return logs[0], nil
}

// ListByUser returns the user's most recent logs, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]*Log, error) {
	return s.List(ctx, Filter{UserID: userID, Limit: limit})
}

// List returns logs matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Log, error) {
	builder := sq.Select(columnsSelect).From(table).OrderBy("scheduled_at DESC", "rowid DESC")
	if filter.UserID != "" {
		builder = builder.Where(sq.Eq{"user_id": filter.UserID})
	}
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": statusStrings(filter.Statuses)})
	}
	if !filter.ScheduledAfter.IsZero() {
		builder = builder.Where(sq.Gt{"scheduled_at": formatTime(filter.ScheduledAfter)})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	builder = builder.Limit(uint64(limit))

	logs, err := s.query(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	return logs, nil
}

// Transition moves a log to the target status and writes the accompanying
// fields in the same statement. Entering fetching stamps started_at; entering
// a terminal status stamps completed_at.
func (s *Store) Transition(ctx context.Context, id string, to Status, upd Update) (*Log, error) {
	from := predecessors[to]
	if len(from) == 0 {
		return nil, fmt.Errorf("%w: %s cannot be entered", ErrInvalidTransition, to)
	}
	now := s.timestamp()
	builder := sq.Update(table).
		Set("status", string(to)).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": statusStrings(from)})
	if to == StatusFetching {
		builder = builder.Set("started_at", now)
	}
	if to.Terminal() {
		builder = builder.Set("completed_at", now)
	}
	if upd.ErrorMessage != "" {
		builder = builder.Set("error_message", upd.ErrorMessage)
	}
	if upd.AudioURL != "" {
		builder = builder.Set("audio_url", upd.AudioURL)
	}
	if upd.SourcesUsed != nil {
		encoded, err := json.Marshal(upd.SourcesUsed)
		if err != nil {
			return nil, fmt.Errorf("encode sources used: %w", err)
		}
		builder = builder.Set("sources_used_json", string(encoded))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transition: %w", err)
	}
	res, err := s.db.ExecWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transition generation to %s: %w", to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition generation to %s: %w", to, err)
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	if affected == 0 {
		return current, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}
	return current, nil
}

// SetNotebookID records the remote notebook for a log. The id is written at
// most once and never cleared.
func (s *Store) SetNotebookID(ctx context.Context, id, notebookID string) error {
	notebookID = strings.TrimSpace(notebookID)
	if notebookID == "" {
		return errors.New("set notebook id: empty notebook id")
	}
	query, args, err := sq.Update(table).
		Set("notebook_id", notebookID).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"id": id, "notebook_id": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build notebook update: %w", err)
	}
	res, err := s.db.ExecWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set notebook id: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotFound
	}
	return ErrNotebookAlreadySet
}

// ForceCompleteStuck moves logs stuck in fetching or generating that already
// have a notebook to complete. It is the operator repair path and returns the
// ids it touched.
func (s *Store) ForceCompleteStuck(ctx context.Context) ([]string, error) {
	stuck := []Status{StatusFetching, StatusGenerating}
	return s.sweep(ctx, sq.NotEq{"notebook_id": nil}, stuck, StatusComplete, "")
}

// FailExpired marks non-terminal logs whose deadline has passed as failed.
func (s *Store) FailExpired(ctx context.Context, now time.Time, message string) ([]string, error) {
	return s.sweep(ctx,
		sq.And{
			sq.NotEq{"deadline_at": nil},
			sq.Lt{"deadline_at": formatTime(now)},
		},
		predecessors[StatusFailed], StatusFailed, message)
}

// FailActive marks every non-terminal log as failed, returning their ids.
func (s *Store) FailActive(ctx context.Context, message string) ([]string, error) {
	return s.sweep(ctx, nil, predecessors[StatusFailed], StatusFailed, message)
}

// sweep moves every log in one of the from statuses that also matches where
// to the target status inside a single transaction.
func (s *Store) sweep(ctx context.Context, where sq.Sqlizer, from []Status, to Status, message string) ([]string, error) {
	cond := sq.And{sq.Eq{"status": statusStrings(from)}}
	if where != nil {
		cond = append(cond, where)
	}
	var ids []string
	err := storage.RetryOnBusy(ctx, func() error {
		ids = ids[:0]
		tx, err := s.db.SQL().BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		query, args, err := sq.Select("id").From(table).Where(cond).ToSql()
		if err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return tx.Commit()
		}

		now := s.timestamp()
		update := sq.Update(table).
			Set("status", string(to)).
			Set("completed_at", now).
			Set("updated_at", now).
			Where(sq.Eq{"id": ids}).
			Where(sq.Eq{"status": statusStrings(from)})
		if message != "" {
			update = update.Set("error_message", message)
		}
		query, args, err = update.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("move generations to %s: %w", to, err)
	}
	return ids, nil
}

// CountByStatus returns a count of logs grouped by status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.SQL().QueryContext(ctx, `SELECT status, COUNT(1) FROM generation_logs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("generation stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func (s *Store) query(ctx context.Context, builder sq.SelectBuilder) ([]*Log, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*Log
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func scanLog(scanner interface{ Scan(dest ...any) error }) (*Log, error) {
	var (
		log          Log
		status       string
		scheduledRaw string
		startedRaw   sql.NullString
		completedRaw sql.NullString
		deadlineRaw  sql.NullString
		notebookID   sql.NullString
		sourcesRaw   sql.NullString
		errorMessage sql.NullString
		audioURL     sql.NullString
		updatedRaw   string
	)
	if err := scanner.Scan(
		&log.ID,
		&log.UserID,
		&status,
		&scheduledRaw,
		&startedRaw,
		&completedRaw,
		&deadlineRaw,
		&notebookID,
		&sourcesRaw,
		&errorMessage,
		&audioURL,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	log.Status = Status(status)
	log.NotebookID = notebookID.String
	log.ErrorMessage = errorMessage.String
	log.AudioURL = audioURL.String
	log.ScheduledAt, _ = parseTime(scheduledRaw)
	log.UpdatedAt, _ = parseTime(updatedRaw)
	log.StartedAt = parseNullableTime(startedRaw)
	log.CompletedAt = parseNullableTime(completedRaw)
	log.DeadlineAt = parseNullableTime(deadlineRaw)
	if sourcesRaw.Valid && sourcesRaw.String != "" {
		var used SourcesUsed
		if err := json.Unmarshal([]byte(sourcesRaw.String), &used); err != nil {
			return nil, fmt.Errorf("decode sources used for %s: %w", log.ID, err)
		}
		log.SourcesUsed = &used
	}
	return &log, nil
}

// formatTime uses a fixed-width layout so stored timestamps sort lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
