package config

import (
	"path/filepath"
	"strings"

	"pinfe/internal/dict"
)

// DefaultProfileName names the dictionary set built from dict_dirs and
// extra_dicts.
const DefaultProfileName = "default"

// Profile is a named dictionary set. Directories take one tier each in
// listed order, then every file takes the next tier.
type Profile struct {
	Name  string
	Dirs  []string
	Files []string
}

// ParseProfile parses "name=path:path". A path in a supported dictionary
// format is a file, anything else a directory.
func ParseProfile(spec string) (Profile, error) {
	name, list, ok := strings.Cut(spec, "=")
	name = strings.ToLower(strings.TrimSpace(name))
	if !ok || name == "" {
		return Profile{}, configErrorf("invalid profile %q, expected name=path[:path...]", spec)
	}
	if name == DefaultProfileName {
		return Profile{}, configErrorf("profile name %q is reserved for dict_dirs", name)
	}
	p := Profile{Name: name}
	for _, path := range filepath.SplitList(list) {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if dict.Supported(path) {
			p.Files = append(p.Files, path)
		} else {
			p.Dirs = append(p.Dirs, path)
		}
	}
	if len(p.Dirs) == 0 && len(p.Files) == 0 {
		return Profile{}, configErrorf("profile %q lists no dictionaries", name)
	}
	return p, nil
}

// Profiles returns the default profile followed by the named ones in
// listed order.
func (c Config) Profiles() ([]Profile, error) {
	profiles := []Profile{{
		Name:  DefaultProfileName,
		Dirs:  c.Dictionary.DictDirs,
		Files: c.Dictionary.ExtraDicts,
	}}
	seen := map[string]bool{DefaultProfileName: true}
	for _, spec := range c.Dictionary.Profiles {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		p, err := ParseProfile(spec)
		if err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, configErrorf("profile %q defined twice", p.Name)
		}
		seen[p.Name] = true
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// ActiveProfile is default_profile, lowercased, or the default profile.
func (c Config) ActiveProfile() string {
	if name := strings.ToLower(strings.TrimSpace(c.Dictionary.DefaultProfile)); name != "" {
		return name
	}
	return DefaultProfileName
}

// Sources resolves the profile's files into load order.
func (p Profile) Sources(enableLevel3 bool) []dict.Source {
	return ResolveSources(p.Dirs, p.Files, enableLevel3)
}

// NextPreview cycles none, pinyin, hanzi.
func NextPreview(preview string) string {
	switch preview {
	case PreviewNone:
		return PreviewPinyin
	case PreviewPinyin:
		return PreviewHanzi
	default:
		return PreviewNone
	}
}

// NextPaste cycles auto, ctrl_v, ctrl_shift_v, shift_insert.
func NextPaste(paste string) string {
	switch paste {
	case PasteAuto:
		return PasteCtrlV
	case PasteCtrlV:
		return PasteCtrlShiftV
	case PasteCtrlShiftV:
		return PasteShiftInsert
	default:
		return PasteAuto
	}
}
