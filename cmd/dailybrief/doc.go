// Package main hosts the dailybrief CLI entrypoint and command graph.
//
// Commands that act on generations or NotebookLM sessions call the daemon's
// HTTP API as the user named by --user. Catalog imports and configuration
// scaffolding work directly against local files and the database.
package main
