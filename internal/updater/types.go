package updater

import "time"

// DefaultRepository is the GitHub slug releases are published under.
const DefaultRepository = "smazurov/av1forge"

// UpdateInfo describes the newest release relative to the running binary.
type UpdateInfo struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseNotes    string    `json:"release_notes"`
	ReleaseURL      string    `json:"release_url"`
	PublishedAt     time.Time `json:"published_at"`
	AssetSize       int       `json:"asset_size"`
	UpdateAvailable bool      `json:"update_available"`
}

// Options configures an Updater.
type Options struct {
	Repository string // GitHub repo slug, e.g. "smazurov/av1forge"
	Prerelease bool   // include prereleases
	BackupDir  string // defaults to ~/.cache/av1forge/backup
}
