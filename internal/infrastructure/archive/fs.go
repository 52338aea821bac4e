package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"MarineIntel/internal/ports"
)

const reportExt = ".md"

// FS stores reports as named text blobs in a directory, with a separate drop
// directory for reports whose index notification failed. Write-once by
// convention: labels carry a date or timestamp, so collisions only happen on
// a deliberate re-publish.
type FS struct {
	dir         string
	fallbackDir string
}

var _ ports.Archive = (*FS)(nil)

// NewFS wires the archive and fallback directories; they are created lazily
// on first write.
func NewFS(dir, fallbackDir string) *FS {
	return &FS{dir: dir, fallbackDir: fallbackDir}
}

// Write archives a report body under its label.
func (a *FS) Write(label, body string) error {
	return writeBlob(a.dir, label, body)
}

// WriteFallback drops a report into the local fallback location.
func (a *FS) WriteFallback(label, body string) error {
	return writeBlob(a.fallbackDir, label, body)
}

// Read returns the archived body for a label.
func (a *FS) Read(label string) (string, error) {
	if err := checkLabel(label); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(filepath.Join(a.dir, label+reportExt))
	if err != nil {
		return "", fmt.Errorf("read report %s: %w", label, err)
	}
	return string(raw), nil
}

// Latest returns the most recently written report and its label.
func (a *FS) Latest() (string, string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return "", "", fmt.Errorf("list reports: %w", err)
	}

	var (
		label   string
		modTime time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), reportExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if label == "" || info.ModTime().After(modTime) {
			label = strings.TrimSuffix(entry.Name(), reportExt)
			modTime = info.ModTime()
		}
	}

	if label == "" {
		return "", "", fmt.Errorf("no reports archived")
	}

	body, err := a.Read(label)
	if err != nil {
		return "", "", err
	}
	return label, body, nil
}

// List returns all archived report labels in sorted order.
func (a *FS) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list reports: %w", err)
	}

	var labels []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), reportExt) {
			continue
		}
		labels = append(labels, strings.TrimSuffix(entry.Name(), reportExt))
	}
	sort.Strings(labels)
	return labels, nil
}

func writeBlob(dir, label, body string) error {
	if err := checkLabel(label); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, label+reportExt)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", label, err)
	}
	return nil
}

func checkLabel(label string) error {
	if label == "" || strings.ContainsAny(label, `/\`) || strings.Contains(label, "..") {
		return fmt.Errorf("invalid report label %q", label)
	}
	return nil
}
