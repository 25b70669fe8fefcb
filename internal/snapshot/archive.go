package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hivefolio/tracker/internal/domain"
)

// Archive writes snapshot documents into a period-partitioned directory
// tree: {root}/{account}/{period}/{filename}.
type Archive struct {
	root string
}

// NewArchive creates a file archive rooted at dir. The directory must
// either exist or be creatable.
func NewArchive(dir string) (*Archive, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory %s: %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("inspecting snapshot directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot path %s is not a directory", dir)
	}
	return &Archive{root: dir}, nil
}

// Write stores the document under every period bucket the timestamp
// belongs to and returns the written paths. Re-running on the same day
// overwrites the same files, so at most one snapshot per period survives.
func (a *Archive) Write(doc Document) ([]string, error) {
	if err := domain.ValidateAccount(doc.Metadata.Account); err != nil {
		return nil, fmt.Errorf("refusing to archive: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}

	var paths []string
	for _, period := range PeriodsFor(doc.Metadata.Timestamp) {
		dir := filepath.Join(a.root, doc.Metadata.Account, string(period))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
		path := filepath.Join(dir, Filename(period, doc.Metadata.Timestamp))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Read loads one archived document.
func (a *Archive) Read(account string, period Period, t time.Time) (Document, error) {
	return a.readFile(filepath.Join(a.root, account, string(period), Filename(period, t)))
}

// Latest loads the newest archived document for one account and period.
func (a *Archive) Latest(account string, period Period) (Document, error) {
	names, err := a.List(account, period)
	if err != nil {
		return Document{}, err
	}
	if len(names) == 0 {
		return Document{}, ErrNotFound
	}
	return a.readFile(filepath.Join(a.root, account, string(period), names[0]))
}

func (a *Archive) readFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return doc, nil
}

// List returns the archived file names for one account and period, newest
// first.
func (a *Archive) List(account string, period Period) ([]string, error) {
	dir := filepath.Join(a.root, account, string(period))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
