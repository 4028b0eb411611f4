package install

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ganderhq/gander/db"
)

// WriteShortcut writes a freedesktop .desktop launcher for the install
// into dir, overwriting any same-named file.
func WriteShortcut(record db.Install, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	exec := filepath.Join(record.Path, "start.sh")
	if record.Platform == "windows" {
		exec = fmt.Sprintf("wine %q", filepath.Join(record.Path, "start.exe"))
	}

	content := fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Comment=Play %s
Exec=%s
Path=%s
Icon=%s
Terminal=false
Categories=Game;
`, record.Name, record.Name, exec, record.Path, filepath.Join(record.Path, "support", "icon.png"))

	path := filepath.Join(dir, shortcutFileName(record.Name))
	return os.WriteFile(path, []byte(content), 0o774)
}

func shortcutFileName(name string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, name)
	return slug + ".desktop"
}
