// Package content defines the uniform item list produced by aggregation and
// consumed by the notebook client.
package content
