package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/smazurov/av1forge/internal/logging"
	"github.com/smazurov/av1forge/internal/version"
)

// Updater checks GitHub for releases and swaps the running executable.
type Updater struct {
	repository selfupdate.Repository
	updater    *selfupdate.Updater
	backups    *backupManager

	enabled        bool
	disabledReason string

	logger *slog.Logger
}

// New creates an Updater. When the executable's directory is not writable
// the returned Updater is disabled and every operation fails with
// ErrCodeDisabled.
func New(opts Options) (*Updater, error) {
	logger := logging.GetLogger("updater")

	if canWrite, reason := checkWritePermission(); !canWrite {
		logger.Warn("Self-update disabled", "reason", reason)
		return &Updater{disabledReason: reason, logger: logger}, nil
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	repo := opts.Repository
	if repo == "" {
		repo = DefaultRepository
	}

	backupDir := opts.BackupDir
	if backupDir == "" {
		if backupDir, err = defaultBackupDir(); err != nil {
			return nil, err
		}
	}
	backups, err := newBackupManager(backupDir, logger)
	if err != nil {
		logger.Warn("Failed to create backup manager", "error", err)
	}

	return &Updater{
		repository: selfupdate.ParseSlug(repo),
		updater:    updater,
		backups:    backups,
		enabled:    true,
		logger:     logger,
	}, nil
}

func checkWritePermission() (bool, string) {
	exe, err := os.Executable()
	if err != nil {
		return false, fmt.Sprintf("failed to get executable path: %v", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return false, fmt.Sprintf("failed to resolve symlinks: %v", err)
	}

	dir := filepath.Dir(exe)
	tmp := filepath.Join(dir, ".av1forge.update.test")
	f, err := os.Create(tmp)
	if err != nil {
		return false, fmt.Sprintf("no write permission to %s: %v", dir, err)
	}
	f.Close()
	os.Remove(tmp)
	return true, ""
}

// Enabled reports whether updates can be applied.
func (u *Updater) Enabled() bool {
	return u.enabled
}

// BackupVersion is the version a Rollback would restore, or empty.
func (u *Updater) BackupVersion() string {
	if u.backups == nil {
		return ""
	}
	return u.backups.backupVersion()
}

func (u *Updater) latest(ctx context.Context) (*selfupdate.Release, error) {
	if !u.enabled {
		return nil, newError(ErrCodeDisabled, u.disabledReason, nil)
	}
	release, found, err := u.updater.DetectLatest(ctx, u.repository)
	if err != nil {
		return nil, newError(ErrCodeCheckFailed, "failed to check for updates", err)
	}
	if !found {
		return nil, newError(ErrCodeNotFound, "repository not found or has no releases", nil)
	}
	return release, nil
}

// Check queries GitHub for the latest release without downloading it.
func (u *Updater) Check(ctx context.Context) (*UpdateInfo, error) {
	release, err := u.latest(ctx)
	if err != nil {
		return nil, err
	}

	current := version.Version
	info := &UpdateInfo{
		CurrentVersion: current,
		LatestVersion:  release.Version(),
	}
	// dev builds are always considered outdated
	if current != "dev" && !release.GreaterThan(current) {
		return info, nil
	}

	info.ReleaseNotes = release.ReleaseNotes
	info.ReleaseURL = release.URL
	info.PublishedAt = release.PublishedAt
	info.AssetSize = release.AssetByteSize
	info.UpdateAvailable = true
	return info, nil
}

// Apply downloads the latest release and replaces the executable, backing
// the current one up first. A failed replacement restores the backup. It
// returns the installed version.
func (u *Updater) Apply(ctx context.Context) (string, error) {
	release, err := u.latest(ctx)
	if err != nil {
		return "", err
	}
	if version.Version != "dev" && !release.GreaterThan(version.Version) {
		return "", newError(ErrCodeNoUpdate, "already at "+version.Version, nil)
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return "", newError(ErrCodeApplyFailed, "failed to get executable path", err)
	}

	if u.backups != nil {
		if err := u.backups.createBackup(exe, version.Version); err != nil {
			return "", newError(ErrCodeBackupFailed, "failed to create backup", err)
		}
	}

	u.logger.Info("Downloading release", "version", release.Version(), "url", release.AssetURL)
	if err := u.updater.UpdateTo(ctx, release, exe); err != nil {
		u.attemptRollback()
		return "", newError(ErrCodeApplyFailed, "failed to apply update", err)
	}

	u.logger.Info("Update applied", "from", version.Version, "to", release.Version())
	return release.Version(), nil
}

// Rollback restores the binary saved by the last Apply.
func (u *Updater) Rollback() error {
	if !u.enabled {
		return newError(ErrCodeDisabled, u.disabledReason, nil)
	}
	if u.backups == nil || !u.backups.hasBackup() {
		return newError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}
	if err := u.backups.restore(); err != nil {
		return newError(ErrCodeRollbackFailed, "failed to restore backup", err)
	}
	return nil
}

func (u *Updater) attemptRollback() {
	if u.backups == nil || !u.backups.hasBackup() {
		u.logger.Error("No backup available for automatic rollback")
		return
	}
	if err := u.backups.restore(); err != nil {
		u.logger.Error("Failed to restore backup", "error", err)
		return
	}
	u.logger.Info("Automatic rollback completed")
}
