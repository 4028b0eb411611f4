package client

import (
	"strconv"
	"strings"
)

// FilesFor returns the installer files for one language and platform
// variant. When the requested language is absent it falls back to
// English, then to the first listed language. Mac files are not served;
// the tool installs the windows variant through a wrapper instead.
func (g Game) FilesFor(language string, windows bool) []PlatformFile {
	var chosen *Platform
	var fallback *Platform
	for i := range g.Downloads {
		d := &g.Downloads[i]
		if fallback == nil {
			fallback = &d.Platforms
		}
		if strings.EqualFold(d.Language, language) {
			chosen = &d.Platforms
			break
		}
		if strings.EqualFold(d.Language, "English") {
			chosen = &d.Platforms
		}
	}
	if chosen == nil {
		chosen = fallback
	}
	if chosen == nil {
		return nil
	}
	if windows {
		return chosen.Windows
	}
	return chosen.Linux
}

// IsPatch reports whether a platform file is an incremental patch rather
// than a full installer.
func (f PlatformFile) IsPatch() bool {
	return strings.Contains(strings.ToLower(f.Name), "patch")
}

// CRC32 parses the catalogue's hex checksum. ok is false when the
// catalogue supplied none or it is unparsable.
func (f PlatformFile) CRC32() (uint32, bool) {
	if f.CRC == nil {
		return 0, false
	}
	value, err := strconv.ParseUint(strings.TrimSpace(*f.CRC), 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(value), true
}

// VersionOrUnknown returns the declared version, or "unknown" when the
// catalogue omits one.
func (f PlatformFile) VersionOrUnknown() string {
	if f.Version == nil || *f.Version == "" {
		return "unknown"
	}
	return *f.Version
}
