// Package api provides an HTTP API server for querying recorded completion
// metrics.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string
}
