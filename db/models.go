package db

// Token is the persisted authentication token. Exactly one row exists;
// the auth session is the only writer.
type Token struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"` // RFC3339
}

// Game is a cached catalogue entry: the raw game-details JSON keyed by the
// GOG product id.
type Game struct {
	ID    int    `gorm:"primaryKey" json:"id"`
	Title string `gorm:"index" json:"title"`
	Data  string `json:"data"`
}

// Install records an installed game so updates can find it later.
type Install struct {
	GameID   int    `gorm:"primaryKey" json:"game_id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Platform string `json:"platform"` // "windows" or "native"
	Version  string `json:"version"`
}

// Setting is a persisted key/value configuration entry, e.g. the save-sync
// path template.
type Setting struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Value string `json:"value"`
}

// SettingSyncPath is the key of the save-sync path template. The value may
// contain a leading "~" that is expanded when read.
const SettingSyncPath = "sync_saves_path"
