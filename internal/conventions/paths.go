package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default kage data directory name (relative to home).
	DefaultDataDir = ".kage"
	// SettingsFile is the settings filename inside the data directory.
	SettingsFile = "settings.yaml"
	// DBFile is the history database filename inside the data directory.
	DBFile = "kage.db"
	// DefaultJailDir is the default jail root directory name (relative to home).
	DefaultJailDir = "kage-jail"
	// DefaultListenAddress is the default WebSocket server address, only local clients.
	DefaultListenAddress = "127.0.0.1:7878"
)

// DataDir returns the kage data directory for a home directory.
func DataDir(home string) string {
	return filepath.Join(home, DefaultDataDir)
}

// SettingsPath returns the default settings file path.
func SettingsPath(home string) string {
	return filepath.Join(DataDir(home), SettingsFile)
}

// DBPath returns the default history database path.
func DBPath(home string) string {
	return filepath.Join(DataDir(home), DBFile)
}

// DefaultRoot returns the default jail root.
func DefaultRoot(home string) string {
	return filepath.Join(home, DefaultJailDir)
}
