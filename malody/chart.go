package malody

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ModeKey is the only chart mode the converter understands.
const ModeKey = 0

var ErrParse = errors.New("malformed chart")

// Beat is a position given as whole beats plus a fraction, encoded in JSON
// as [whole, numerator, denominator].
type Beat struct {
	Whole, Num, Den uint32
}

func (b Beat) Float() float64 {
	return float64(b.Whole) + float64(b.Num)/float64(b.Den)
}

func (b *Beat) UnmarshalJSON(data []byte) error {
	var parts []uint32
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("beat %s: %w", data, err)
	}
	if len(parts) < 3 {
		return fmt.Errorf("beat %s: want [whole, num, den]", data)
	}
	if parts[2] == 0 {
		return fmt.Errorf("beat %s: zero denominator", data)
	}
	*b = Beat{Whole: parts[0], Num: parts[1], Den: parts[2]}
	return nil
}

func (b Beat) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]uint32{b.Whole, b.Num, b.Den})
}

type Chart struct {
	Meta   Meta
	Time   []Tempo
	Effect []Scroll
	// Notes holds the playable notes only. The trailing audio entry of the
	// source file is split off into Audio.
	Notes []Note
	Audio Audio
}

type Meta struct {
	Creator    string
	Background string
	Version    string
	Preview    *int
	Mode       int
	Columns    int
	Song       Song
}

type Song struct {
	Title     string
	Artist    string
	TitleOrg  *string
	ArtistOrg *string
}

// RomanisedTitle prefers the original-language alias when the chart has one.
func (s Song) RomanisedTitle() string {
	if s.TitleOrg != nil {
		return *s.TitleOrg
	}
	return s.Title
}

func (s Song) RomanisedArtist() string {
	if s.ArtistOrg != nil {
		return *s.ArtistOrg
	}
	return s.Artist
}

type Tempo struct {
	Beat Beat    `json:"beat"`
	BPM  float64 `json:"bpm"`
}

type Scroll struct {
	Beat   Beat    `json:"beat"`
	Scroll float64 `json:"scroll"`
}

type Note struct {
	Beat    Beat    `json:"beat"`
	EndBeat *Beat   `json:"endbeat,omitempty"`
	Column  *uint8  `json:"column,omitempty"`
	Sound   *string `json:"sound,omitempty"`
	Vol     *int    `json:"vol,omitempty"`
	Offset  *int    `json:"offset,omitempty"`
	Type    *int    `json:"type,omitempty"`
}

func (n Note) IsHold() bool { return n.EndBeat != nil }

// Lane returns the note column, 0 when the source omitted it.
func (n Note) Lane() int {
	if n.Column == nil {
		return 0
	}
	return int(*n.Column)
}

// Audio is carried by the last entry of the source note list: the song file
// and the global offset in milliseconds.
type Audio struct {
	Sound  string
	Offset int
}
