package client

import "encoding/json"

// Game contains the details of one catalogue entry: its installer files per
// platform variant and its extras.
type Game struct {
	Title     string         `json:"title"`
	Downloads []Downloadable `json:"downloads"`
	Extras    []Extra        `json:"extras"`
}

// PlatformFile describes one platform-specific installer file.
type PlatformFile struct {
	ManualURL *string `json:"manualUrl,omitempty"`
	Name      string  `json:"name"`
	Version   *string `json:"version,omitempty"`
	Date      *string `json:"date,omitempty"`
	Size      string  `json:"size"`
	CRC       *string `json:"crc,omitempty"` // hex CRC-32 when the catalogue supplies one
}

// Extra is a bonus downloadable asset (manual, soundtrack, wallpaper).
type Extra struct {
	Name      string `json:"name"`
	Size      string `json:"size"`
	ManualURL string `json:"manualUrl"`
}

// Platform groups installer files by operating system.
type Platform struct {
	Windows []PlatformFile `json:"windows,omitempty"`
	Mac     []PlatformFile `json:"mac,omitempty"`
	Linux   []PlatformFile `json:"linux,omitempty"`
}

// Downloadable groups the platform files for one language.
type Downloadable struct {
	Language  string   `json:"language"`
	Platforms Platform `json:"platforms"`
}

// Product is one entry of a filtered-products listing.
type Product struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// UnmarshalJSON handles the embed API's downloads encoding, which is a list
// of [language, platforms] pairs rather than an object list.
func (g *Game) UnmarshalJSON(data []byte) error {
	type alias Game
	aux := &struct {
		RawDownloads [][]interface{} `json:"downloads"`
		*alias
	}{
		alias: (*alias)(g),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	g.Downloads = parseRawDownloads(aux.RawDownloads)
	return nil
}

func parseRawDownloads(rawDownloads [][]interface{}) []Downloadable {
	var downloads []Downloadable
	for _, raw := range rawDownloads {
		if len(raw) != 2 {
			continue
		}
		language, ok := raw[0].(string)
		if !ok {
			continue
		}
		platforms, err := parsePlatforms(raw[1])
		if err != nil {
			continue
		}
		downloads = append(downloads, Downloadable{Language: language, Platforms: platforms})
	}
	return downloads
}

func parsePlatforms(data interface{}) (Platform, error) {
	platformsData, err := json.Marshal(data)
	if err != nil {
		return Platform{}, err
	}
	var platforms Platform
	if err := json.Unmarshal(platformsData, &platforms); err != nil {
		return Platform{}, err
	}
	return platforms, nil
}

// ParseGameData parses a raw game-details JSON document.
func ParseGameData(data string) (Game, error) {
	var game Game
	if err := json.Unmarshal([]byte(data), &game); err != nil {
		return Game{}, err
	}
	return game, nil
}
