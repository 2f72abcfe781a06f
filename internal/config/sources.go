package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pinfe/internal/dict"
)

// IsLevel3 reports whether path is a rare-character table.
func IsLevel3(path string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(path)), "level3")
}

// ResolveSources turns the dictionary settings into load order. Each
// directory in dictDirs is its own tier, in listed order, holding every
// supported file it contains sorted by name. Each extra file takes the
// next tier. Level-3 files are skipped unless enableLevel3 is set, in which
// case they share one tier after everything else. Missing directories are
// skipped.
func ResolveSources(dictDirs, extraDicts []string, enableLevel3 bool) []dict.Source {
	var sources, level3 []dict.Source
	tier := 0
	add := func(path string, t int) {
		if IsLevel3(path) {
			if enableLevel3 {
				level3 = append(level3, dict.Source{Path: path})
			}
			return
		}
		sources = append(sources, dict.Source{Path: path, Tier: t})
	}

	for _, dir := range dictDirs {
		dir = expandPath(dir)
		if dir == "" {
			continue
		}
		tier++
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() || !dict.Supported(entry.Name()) {
				continue
			}
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			add(filepath.Join(dir, name), tier)
		}
	}
	for _, path := range extraDicts {
		path = expandPath(path)
		if path == "" {
			continue
		}
		tier++
		add(path, tier)
	}
	for i := range level3 {
		level3[i].Tier = tier + 1
	}
	return append(sources, level3...)
}

// expandPath expands environment variables and a leading ~/.
func expandPath(path string) string {
	path = os.ExpandEnv(strings.TrimSpace(path))
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}
