// Package storage owns the SQLite database shared by the generation log and
// source catalog stores: connection pragmas, the embedded schema with its
// version guard, and retry-on-busy helpers for writers.
package storage
