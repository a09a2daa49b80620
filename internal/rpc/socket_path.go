package rpc

import "path/filepath"

// SocketName is the Unix socket file elixir serve listens on, inside the project's data
// directory -- the same "derive the socket path from the data directory" convention as the
// teacher's ShortSocketPath, minus the long-path fallback: elixir's data directory is always a
// short, project-local path the caller chose, not a deep workspace checkout path.
const SocketName = "elixir.sock"

// SocketPath returns the socket path for the project rooted at dataDir.
func SocketPath(dataDir string) string {
	return filepath.Join(dataDir, SocketName)
}
