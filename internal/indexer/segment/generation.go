package segment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const generationPrefix = "gen-"

// SetCurrent points dataDir/CURRENT at generation name by writing a
// temporary file and renaming it over the old pointer.
func SetCurrent(dataDir, name string) error {
	tmp := filepath.Join(dataDir, CurrentFile+".tmp")
	if err := writeFileSync(tmp, []byte(name+"\n")); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(dataDir, CurrentFile)); err != nil {
		return fmt.Errorf("replacing %s: %w", CurrentFile, err)
	}
	return nil
}

// Current returns the generation name CURRENT points at.
func Current(dataDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, CurrentFile))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", CurrentFile, err)
	}
	name := strings.TrimSpace(string(data))
	if !ValidName(name) {
		return "", fmt.Errorf("%s names invalid generation %q", CurrentFile, name)
	}
	return name, nil
}

// ValidName reports whether name is a generation directory name. It keeps
// names received from the network from escaping dataDir.
func ValidName(name string) bool {
	if !strings.HasPrefix(name, generationPrefix) || len(name) == len(generationPrefix) {
		return false
	}
	for _, r := range name[len(generationPrefix):] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Older reports whether generation a was created before b. Both must be
// valid names.
func Older(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// ReadCurrent loads the generation CURRENT points at.
func ReadCurrent(dataDir string) (*Snapshot, error) {
	name, err := Current(dataDir)
	if err != nil {
		return nil, err
	}
	return ReadGeneration(filepath.Join(dataDir, name))
}

// List returns the complete generation names under dataDir, oldest first.
func List(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing generations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && ValidName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return Older(names[i], names[j]) })
	return names, nil
}

// Prune removes the oldest generations so that at most keep remain, never
// removing the current one. It returns the removed names.
func Prune(dataDir string, keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}
	names, err := List(dataDir)
	if err != nil {
		return nil, err
	}
	current, _ := Current(dataDir)
	var removed []string
	excess := len(names) - keep
	for _, name := range names {
		if excess <= 0 {
			break
		}
		if name == current {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dataDir, name)); err != nil {
			return removed, fmt.Errorf("removing generation %s: %w", name, err)
		}
		removed = append(removed, name)
		excess--
	}
	return removed, nil
}
