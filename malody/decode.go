package malody

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type rawChart struct {
	Meta   *rawMeta `json:"meta"`
	Time   *[]Tempo `json:"time"`
	Effect []Scroll `json:"effect"`
	Note   *[]Note  `json:"note"`
}

type rawMeta struct {
	Creator    *string  `json:"creator"`
	Background *string  `json:"background"`
	Version    *string  `json:"version"`
	Preview    *int     `json:"preview"`
	Mode       *int     `json:"mode"`
	Song       *rawSong `json:"song"`
	ModeExt    *struct {
		Column *int `json:"column"`
	} `json:"mode_ext"`
}

type rawSong struct {
	Title     *string `json:"title"`
	Artist    *string `json:"artist"`
	TitleOrg  *string `json:"titleorg"`
	ArtistOrg *string `json:"artistorg"`
}

func DecodeFile(path string) (*Chart, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a .mc chart. Anything before the first '{' is discarded, some
// editors write a BOM or junk ahead of the object.
func Decode(r io.Reader) (*Chart, error) {
	data, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, err
	}
	start := bytes.IndexByte(data, '{')
	if start < 0 {
		return nil, fmt.Errorf("%w: no JSON object", ErrParse)
	}

	var raw rawChart
	if err := json.Unmarshal(data[start:], &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return raw.chart()
}

func missing(field string) error {
	return fmt.Errorf("%w: missing field %q", ErrParse, field)
}

func (raw *rawChart) chart() (*Chart, error) {
	m := raw.Meta
	switch {
	case m == nil:
		return nil, missing("meta")
	case m.Creator == nil:
		return nil, missing("meta.creator")
	case m.Background == nil:
		return nil, missing("meta.background")
	case m.Version == nil:
		return nil, missing("meta.version")
	case m.Mode == nil:
		return nil, missing("meta.mode")
	case m.Song == nil:
		return nil, missing("meta.song")
	case m.Song.Title == nil:
		return nil, missing("meta.song.title")
	case m.Song.Artist == nil:
		return nil, missing("meta.song.artist")
	case m.ModeExt == nil || m.ModeExt.Column == nil:
		return nil, missing("meta.mode_ext.column")
	case raw.Time == nil:
		return nil, missing("time")
	case raw.Note == nil:
		return nil, missing("note")
	}
	if *m.ModeExt.Column <= 0 {
		return nil, fmt.Errorf("%w: column count %d", ErrParse, *m.ModeExt.Column)
	}
	notes := *raw.Note
	if len(notes) == 0 {
		return nil, fmt.Errorf("%w: note list has no audio entry", ErrParse)
	}

	for i, n := range notes[:len(notes)-1] {
		if n.Lane() >= *m.ModeExt.Column {
			return nil, fmt.Errorf("%w: note %d in column %d of a %dK chart", ErrParse, i, n.Lane(), *m.ModeExt.Column)
		}
	}

	last := notes[len(notes)-1]
	audio := Audio{}
	if last.Sound != nil {
		audio.Sound = *last.Sound
	}
	if last.Offset != nil {
		audio.Offset = *last.Offset
	}

	return &Chart{
		Meta: Meta{
			Creator:    *m.Creator,
			Background: *m.Background,
			Version:    *m.Version,
			Preview:    m.Preview,
			Mode:       *m.Mode,
			Columns:    *m.ModeExt.Column,
			Song: Song{
				Title:     *m.Song.Title,
				Artist:    *m.Song.Artist,
				TitleOrg:  m.Song.TitleOrg,
				ArtistOrg: m.Song.ArtistOrg,
			},
		},
		Time:   *raw.Time,
		Effect: raw.Effect,
		Notes:  notes[:len(notes)-1],
		Audio:  audio,
	}, nil
}
