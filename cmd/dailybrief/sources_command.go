package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dailybrief/internal/catalog"
	"dailybrief/internal/storage"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage the local source catalog",
	}
	cmd.AddCommand(newSourcesImportCommand(ctx))
	cmd.AddCommand(newSourcesListCommand(ctx))
	return cmd
}

// withCatalog opens the database directly, alongside any running daemon.
func (c *commandContext) withCatalog(ctx context.Context, fn func(context.Context, *catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(ctx, catalog.NewStore(db))
}

func newSourcesImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Replace users' sources from a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := catalog.LoadDocument(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalog(cmd.Context(), func(c context.Context, store *catalog.Store) error {
				if err := store.Import(c, doc); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, user := range doc.Users {
					fmt.Fprintf(out, "Imported %s: %d publications, %d feeds, %d topics\n",
						user.ID, len(user.Publications), len(user.Feeds), len(user.Topics))
				}
				return nil
			})
		},
	}
}

type sourcesView struct {
	UserID       string            `json:"user_id"`
	DailyEnabled bool              `json:"daily_enabled"`
	AudioFormat  string            `json:"audio_format,omitempty"`
	Publications []publicationView `json:"publications"`
	Feeds        []feedView        `json:"feeds"`
	Topics       []topicView       `json:"topics"`
}

type publicationView struct {
	PublicationID string `json:"publication_id"`
	Name          string `json:"name"`
	Subdomain     string `json:"subdomain"`
	Priority      *int   `json:"priority,omitempty"`
	Enabled       bool   `json:"enabled"`
}

type feedView struct {
	URL     string `json:"url"`
	Name    string `json:"name,omitempty"`
	Enabled bool   `json:"enabled"`
}

type topicView struct {
	Topic   string `json:"topic"`
	Enabled bool   `json:"enabled"`
}

func newSourcesView(userID string, snap catalog.Snapshot) sourcesView {
	view := sourcesView{
		UserID:       userID,
		DailyEnabled: snap.Settings.DailyEnabled,
		AudioFormat:  snap.Settings.AudioFormat,
		Publications: make([]publicationView, 0, len(snap.Publications)),
		Feeds:        make([]feedView, 0, len(snap.Feeds)),
		Topics:       make([]topicView, 0, len(snap.Topics)),
	}
	for _, p := range snap.Publications {
		view.Publications = append(view.Publications, publicationView{
			PublicationID: p.PublicationID,
			Name:          p.Name,
			Subdomain:     p.Subdomain,
			Priority:      p.Priority,
			Enabled:       p.Enabled,
		})
	}
	for _, f := range snap.Feeds {
		view.Feeds = append(view.Feeds, feedView{URL: f.URL, Name: f.Name, Enabled: f.Enabled})
	}
	for _, t := range snap.Topics {
		view.Topics = append(view.Topics, topicView{Topic: t.Topic, Enabled: t.Enabled})
	}
	return view
}

func newSourcesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the current user's publications, feeds and topics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := ctx.userID()
			if err != nil {
				return err
			}
			return ctx.withCatalog(cmd.Context(), func(c context.Context, store *catalog.Store) error {
				snap, err := store.Snapshot(c, user)
				if err != nil {
					return err
				}
				view := newSourcesView(user, snap)
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				printSources(cmd, view)
				return nil
			})
		},
	}
}

func printSources(cmd *cobra.Command, view sourcesView) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "User:", view.UserID)
	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Daily:", yesNo(view.DailyEnabled))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Publications", colorize) {
		fmt.Fprintln(out, line)
	}
	pubRows := make([][]string, 0, len(view.Publications))
	for _, p := range view.Publications {
		priority := "-"
		if p.Priority != nil {
			priority = strconv.Itoa(*p.Priority)
		}
		pubRows = append(pubRows, []string{priority, p.Name, p.Subdomain, yesNo(p.Enabled)})
	}
	printTable(out, []string{"Priority", "Name", "Subdomain", "Enabled"}, pubRows, []columnAlignment{alignRight})
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Feeds", colorize) {
		fmt.Fprintln(out, line)
	}
	feedRows := make([][]string, 0, len(view.Feeds))
	for _, f := range view.Feeds {
		feedRows = append(feedRows, []string{orDash(f.Name), f.URL, yesNo(f.Enabled)})
	}
	printTable(out, []string{"Name", "URL", "Enabled"}, feedRows, nil)
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Topics", colorize) {
		fmt.Fprintln(out, line)
	}
	topicRows := make([][]string, 0, len(view.Topics))
	for _, t := range view.Topics {
		topicRows = append(topicRows, []string{t.Topic, yesNo(t.Enabled)})
	}
	printTable(out, []string{"Topic", "Enabled"}, topicRows, nil)
}
