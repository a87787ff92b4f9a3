package aggregator

import (
	"fmt"
	"strings"

	"dailybrief/internal/content"
	"dailybrief/internal/generation"
	"dailybrief/internal/sources"
)

// Batch is everything fetched for one user. Results keep catalog order.
type Batch struct {
	UserID   string
	Priority []sources.PublicationResult
	Feeds    []sources.FeedResult
	Topics   []sources.TopicResult
	Problems []string
}

// Items flattens the batch into notebook sources: priority posts in
// subscription order, then feed entries grouped by feed, then topic briefs.
// Failed topics produce no item.
func (b Batch) Items() []content.Item {
	var items []content.Item
	for _, pub := range b.Priority {
		for _, post := range pub.Posts {
			items = append(items, content.Text("Newsletter: "+post.Title, sections("# "+post.Title, post.Subtitle, post.Body)))
		}
	}
	for _, feed := range b.Feeds {
		for _, entry := range feed.Entries {
			title := entry.Title
			if strings.TrimSpace(title) == "" {
				title = feed.Source.DisplayName()
			}
			items = append(items, content.Text(title, sections("# "+title, entry.Summary, entry.Content)))
		}
	}
	for _, topic := range b.Topics {
		if topic.Err != nil {
			continue
		}
		items = append(items, content.Text("News: "+topic.Topic.Topic, sections("# Latest News: "+topic.Topic.Topic, topic.Summary)))
	}
	return items
}

// SourcesUsed summarizes the batch for the generation log.
func (b Batch) SourcesUsed() generation.SourcesUsed {
	used := generation.SourcesUsed{}
	for _, pub := range b.Priority {
		used.Priority += len(pub.Posts)
		if pub.Err != nil {
			used.FailedSources = append(used.FailedSources, "publication:"+publicationLabel(pub.Subscription))
		}
	}
	for _, feed := range b.Feeds {
		used.Feeds += len(feed.Entries)
		if feed.Err != nil {
			used.FailedSources = append(used.FailedSources, "feed:"+feed.Source.DisplayName())
		}
	}
	for _, topic := range b.Topics {
		if topic.Err != nil {
			used.FailedSources = append(used.FailedSources, "topic:"+topic.Topic.Topic)
			continue
		}
		used.Topics++
	}
	used.Items = len(b.Items())
	return used
}

// Empty reports whether the batch produced no content items.
func (b Batch) Empty() bool {
	return len(b.Items()) == 0
}

// Summary is a one-line description for logs and CLI output.
func (b Batch) Summary() string {
	used := b.SourcesUsed()
	return fmt.Sprintf("%d items (%d newsletter posts, %d feed entries, %d topics, %d failed sources)",
		used.Items, used.Priority, used.Feeds, used.Topics, len(used.FailedSources))
}

// sections joins the non-empty parts with blank lines.
func sections(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "\n\n")
}
