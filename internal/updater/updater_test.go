package updater

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackupCreateAndRestore(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "av1forge")
	if err := os.WriteFile(exe, []byte("v1 binary"), 0o755); err != nil {
		t.Fatal(err)
	}

	mgr, err := newBackupManager(filepath.Join(dir, "backup"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if mgr.hasBackup() {
		t.Fatal("fresh directory should have no backup")
	}

	if err := mgr.createBackup(exe, "v1.0.0"); err != nil {
		t.Fatalf("createBackup: %v", err)
	}
	if got := mgr.backupVersion(); got != "v1.0.0" {
		t.Errorf("backupVersion = %q, want v1.0.0", got)
	}

	if err := os.WriteFile(exe, []byte("v2 binary"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := mgr.restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	data, err := os.ReadFile(exe)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v1 binary" {
		t.Errorf("restored content = %q", data)
	}
}

func TestBackupInfoReloaded(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "av1forge")
	if err := os.WriteFile(exe, []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	backupDir := filepath.Join(dir, "backup")

	first, err := newBackupManager(backupDir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := first.createBackup(exe, "v0.3.1"); err != nil {
		t.Fatal(err)
	}

	second, err := newBackupManager(backupDir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got := second.backupVersion(); got != "v0.3.1" {
		t.Errorf("reloaded version = %q, want v0.3.1", got)
	}

	// A missing binary invalidates the recorded info.
	if err := os.Remove(filepath.Join(backupDir, backupFilename)); err != nil {
		t.Fatal(err)
	}
	third, err := newBackupManager(backupDir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if third.hasBackup() {
		t.Error("backup without its binary should be ignored")
	}
}

func TestRestoreWithoutBackup(t *testing.T) {
	mgr, err := newBackupManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.restore(); err == nil {
		t.Error("expected an error without a backup")
	}
}

func TestDisabledUpdater(t *testing.T) {
	u := &Updater{disabledReason: "read-only install", logger: testLogger()}

	if _, err := u.Check(t.Context()); !IsCode(err, ErrCodeDisabled) {
		t.Errorf("Check error = %v, want %s", err, ErrCodeDisabled)
	}
	if _, err := u.Apply(t.Context()); !IsCode(err, ErrCodeDisabled) {
		t.Errorf("Apply error = %v, want %s", err, ErrCodeDisabled)
	}
	if err := u.Rollback(); !IsCode(err, ErrCodeDisabled) {
		t.Errorf("Rollback error = %v, want %s", err, ErrCodeDisabled)
	}
	if u.BackupVersion() != "" {
		t.Error("disabled updater has no backup")
	}
}

func TestRollbackWithoutBackup(t *testing.T) {
	u := &Updater{enabled: true, logger: testLogger()}
	if err := u.Rollback(); !IsCode(err, ErrCodeNoBackup) {
		t.Errorf("Rollback error = %v, want %s", err, ErrCodeNoBackup)
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := newError(ErrCodeCheckFailed, "failed to check for updates", cause)

	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through errors.Is")
	}
	want := "CHECK_FAILED: failed to check for updates: connection reset"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if IsCode(cause, ErrCodeCheckFailed) {
		t.Error("plain errors carry no code")
	}
}
