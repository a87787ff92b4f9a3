package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"dailybrief/internal/storage"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store reads and seeds the per-user source catalog.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps the shared database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: sqlx.NewDb(db.SQL(), "sqlite")}
}

// PrioritySubscriptions returns the user's enabled publications ordered by
// priority (unranked last), then name.
func (s *Store) PrioritySubscriptions(ctx context.Context, userID string) ([]PrioritySubscription, error) {
	var subs []PrioritySubscription
	if err := s.selectInto(ctx, &subs, publicationQuery(userID, true)); err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	return subs, nil
}

// Feeds returns the user's enabled feeds in insertion order.
func (s *Store) Feeds(ctx context.Context, userID string) ([]FeedSource, error) {
	var feeds []FeedSource
	if err := s.selectInto(ctx, &feeds, feedQuery(userID, true)); err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	return feeds, nil
}

// Topics returns the user's enabled topics in insertion order.
func (s *Store) Topics(ctx context.Context, userID string) ([]Topic, error) {
	var topics []Topic
	if err := s.selectInto(ctx, &topics, topicQuery(userID, true)); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// Settings returns the user's settings, or zero-value settings when none exist.
func (s *Store) Settings(ctx context.Context, userID string) (Settings, error) {
	query, args, err := sq.Select("user_id", "substack_token", "daily_enabled", "audio_format", "instructions").
		From("user_settings").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return Settings{}, err
	}
	var settings Settings
	if err := s.db.GetContext(ctx, &settings, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Settings{UserID: userID}, nil
		}
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// SubstackToken returns the user's publication API token, if any.
func (s *Store) SubstackToken(ctx context.Context, userID string) (string, error) {
	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return "", err
	}
	return settings.SubstackToken, nil
}

// DailyUsers returns users that opted into the daily scheduled generation.
func (s *Store) DailyUsers(ctx context.Context) ([]string, error) {
	var users []string
	if err := s.db.SelectContext(ctx, &users,
		`SELECT user_id FROM user_settings WHERE daily_enabled = 1 ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list daily users: %w", err)
	}
	return users, nil
}

// Users returns every user with any catalog entry.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	var users []string
	if err := s.db.SelectContext(ctx, &users, `
		SELECT user_id FROM user_settings
		UNION SELECT user_id FROM publications
		UNION SELECT user_id FROM feeds
		UNION SELECT user_id FROM topics`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	sort.Strings(users)
	return users, nil
}

// Snapshot returns all of a user's sources including disabled ones.
func (s *Store) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Settings, err = s.Settings(ctx, userID); err != nil {
		return Snapshot{}, err
	}
	if err := s.selectInto(ctx, &snap.Publications, publicationQuery(userID, false)); err != nil {
		return Snapshot{}, fmt.Errorf("list publications: %w", err)
	}
	if err := s.selectInto(ctx, &snap.Feeds, feedQuery(userID, false)); err != nil {
		return Snapshot{}, fmt.Errorf("list feeds: %w", err)
	}
	if err := s.selectInto(ctx, &snap.Topics, topicQuery(userID, false)); err != nil {
		return Snapshot{}, fmt.Errorf("list topics: %w", err)
	}
	return snap, nil
}

func (s *Store) selectInto(ctx context.Context, dest any, builder sq.SelectBuilder) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	return s.db.SelectContext(ctx, dest, query, args...)
}

func publicationQuery(userID string, enabledOnly bool) sq.SelectBuilder {
	b := sq.Select("id", "user_id", "publication_id", "name", "subdomain", "priority", "enabled").
		From("publications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("priority IS NULL", "priority", "name", "id")
	if enabledOnly {
		b = b.Where(sq.Eq{"enabled": 1})
	}
	return b
}

func feedQuery(userID string, enabledOnly bool) sq.SelectBuilder {
	b := sq.Select("id", "user_id", "url", "name", "enabled").
		From("feeds").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("id")
	if enabledOnly {
		b = b.Where(sq.Eq{"enabled": 1})
	}
	return b
}

func topicQuery(userID string, enabledOnly bool) sq.SelectBuilder {
	b := sq.Select("id", "user_id", "topic", "enabled").
		From("topics").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("id")
	if enabledOnly {
		b = b.Where(sq.Eq{"enabled": 1})
	}
	return b
}
