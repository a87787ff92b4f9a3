package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the YAML seed format accepted by Import.
//
//	users:
//	  - id: alice
//	    daily_enabled: true
//	    publications:
//	      - {publication_id: "123", name: Platformer, subdomain: platformer, priority: 1}
//	    feeds:
//	      - {url: "https://go.dev/blog/feed.atom", name: Go Blog}
//	    topics:
//	      - {topic: "open source AI"}
type Document struct {
	Users []UserDocument `yaml:"users"`
}

// UserDocument describes one user's catalog. Omitted enabled flags default to true.
type UserDocument struct {
	ID            string                `yaml:"id"`
	SubstackToken string                `yaml:"substack_token"`
	DailyEnabled  bool                  `yaml:"daily_enabled"`
	AudioFormat   string                `yaml:"audio_format"`
	Instructions  string                `yaml:"instructions"`
	Publications  []PublicationDocument `yaml:"publications"`
	Feeds         []FeedDocument        `yaml:"feeds"`
	Topics        []TopicDocument       `yaml:"topics"`
}

type PublicationDocument struct {
	PublicationID string `yaml:"publication_id"`
	Name          string `yaml:"name"`
	Subdomain     string `yaml:"subdomain"`
	Priority      *int   `yaml:"priority"`
	Enabled       *bool  `yaml:"enabled"`
}

type FeedDocument struct {
	URL     string `yaml:"url"`
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`
}

type TopicDocument struct {
	Topic   string `yaml:"topic"`
	Enabled *bool  `yaml:"enabled"`
}

// LoadDocument reads and validates a YAML catalog file.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read catalog file: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse catalog file: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Validate checks identifiers and ranges before anything is written.
func (d Document) Validate() error {
	if len(d.Users) == 0 {
		return errors.New("catalog: no users defined")
	}
	seen := make(map[string]struct{}, len(d.Users))
	for i, user := range d.Users {
		id := strings.TrimSpace(user.ID)
		if id == "" {
			return fmt.Errorf("catalog: users[%d].id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("catalog: user %q defined twice", id)
		}
		seen[id] = struct{}{}
		for j, pub := range user.Publications {
			if strings.TrimSpace(pub.Subdomain) == "" {
				return fmt.Errorf("catalog: user %q publications[%d].subdomain is required", id, j)
			}
			if pub.Priority != nil && (*pub.Priority < 1 || *pub.Priority > 5) {
				return fmt.Errorf("catalog: user %q publications[%d].priority must be 1-5", id, j)
			}
		}
		for j, feed := range user.Feeds {
			if strings.TrimSpace(feed.URL) == "" {
				return fmt.Errorf("catalog: user %q feeds[%d].url is required", id, j)
			}
		}
		for j, topic := range user.Topics {
			if strings.TrimSpace(topic.Topic) == "" {
				return fmt.Errorf("catalog: user %q topics[%d].topic is required", id, j)
			}
		}
	}
	return nil
}

// Import replaces each listed user's catalog wholesale in one transaction.
func (s *Store) Import(ctx context.Context, doc Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, user := range doc.Users {
		id := strings.TrimSpace(user.ID)
		for _, table := range []string{"publications", "feeds", "topics", "user_settings"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", id); err != nil {
				return fmt.Errorf("clear %s for %s: %w", table, id, err)
			}
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO user_settings (user_id, substack_token, daily_enabled, audio_format, instructions)
			VALUES (:user_id, :substack_token, :daily_enabled, :audio_format, :instructions)`,
			Settings{
				UserID:        id,
				SubstackToken: strings.TrimSpace(user.SubstackToken),
				DailyEnabled:  user.DailyEnabled,
				AudioFormat:   strings.ToLower(strings.TrimSpace(user.AudioFormat)),
				Instructions:  strings.TrimSpace(user.Instructions),
			}); err != nil {
			return fmt.Errorf("insert settings for %s: %w", id, err)
		}
		for _, pub := range user.Publications {
			name := strings.TrimSpace(pub.Name)
			if name == "" {
				name = strings.TrimSpace(pub.Subdomain)
			}
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO publications (user_id, publication_id, name, subdomain, priority, enabled)
				VALUES (:user_id, :publication_id, :name, :subdomain, :priority, :enabled)`,
				PrioritySubscription{
					UserID:        id,
					PublicationID: strings.TrimSpace(pub.PublicationID),
					Name:          name,
					Subdomain:     strings.ToLower(strings.TrimSpace(pub.Subdomain)),
					Priority:      pub.Priority,
					Enabled:       enabled(pub.Enabled),
				}); err != nil {
				return fmt.Errorf("insert publication %s for %s: %w", pub.Subdomain, id, err)
			}
		}
		for _, feed := range user.Feeds {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO feeds (user_id, url, name, enabled)
				VALUES (:user_id, :url, :name, :enabled)`,
				FeedSource{
					UserID:  id,
					URL:     strings.TrimSpace(feed.URL),
					Name:    strings.TrimSpace(feed.Name),
					Enabled: enabled(feed.Enabled),
				}); err != nil {
				return fmt.Errorf("insert feed %s for %s: %w", feed.URL, id, err)
			}
		}
		for _, topic := range user.Topics {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO topics (user_id, topic, enabled)
				VALUES (:user_id, :topic, :enabled)`,
				Topic{
					UserID:  id,
					Topic:   strings.TrimSpace(topic.Topic),
					Enabled: enabled(topic.Enabled),
				}); err != nil {
				return fmt.Errorf("insert topic %q for %s: %w", topic.Topic, id, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}
