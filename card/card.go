// Package card renders chart summaries into a PNG, one 1200x300 card per
// chart, stacked vertically.
package card

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"mcz2osz/resource"
	"mcz2osz/transcode"
)

const (
	Width      = 1200
	CardHeight = 300
	margin     = 40
	badgeWidth = 180
)

var ErrNoSummaries = errors.New("no summaries to render")

var (
	fillColor    = color.RGBA{R: 0x28, G: 0x2a, B: 0x36, A: 0xff}
	shadeColor   = color.RGBA{A: 0x96}
	textColor    = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	subtextColor = color.RGBA{R: 0xd0, G: 0xd0, B: 0xd8, A: 0xff}
)

type Renderer struct {
	// Placeholder is drawn behind charts whose own background is missing.
	Placeholder string

	once    sync.Once
	regular *opentype.Font
	bold    *opentype.Font
	err     error
}

type faces struct {
	title, version, body, small, badge font.Face
}

func (f *faces) Close() {
	for _, face := range []font.Face{f.title, f.version, f.body, f.small, f.badge} {
		if face != nil {
			face.Close()
		}
	}
}

func (r *Renderer) loadFonts() error {
	r.once.Do(func() {
		if r.regular, r.err = opentype.Parse(goregular.TTF); r.err != nil {
			return
		}
		r.bold, r.err = opentype.Parse(gobold.TTF)
	})
	return r.err
}

// newFaces builds a fresh set of faces; a face must not be shared between
// goroutines.
func (r *Renderer) newFaces() (*faces, error) {
	if err := r.loadFonts(); err != nil {
		return nil, err
	}
	var err error
	face := func(f *opentype.Font, size float64) font.Face {
		if err != nil {
			return nil
		}
		var out font.Face
		out, err = opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
		return out
	}
	fs := &faces{
		title:   face(r.bold, 44),
		version: face(r.bold, 30),
		body:    face(r.regular, 30),
		small:   face(r.regular, 24),
		badge:   face(r.bold, 36),
	}
	if err != nil {
		fs.Close()
		return nil, err
	}
	return fs, nil
}

// Render draws the summaries into <outDir>/<first title>.png and returns the
// file path. Backgrounds are looked up in assetsDir.
func (r *Renderer) Render(summaries []transcode.Summary, assetsDir, outDir string) (string, error) {
	if len(summaries) == 0 {
		return "", ErrNoSummaries
	}
	fs, err := r.newFaces()
	if err != nil {
		return "", err
	}
	defer fs.Close()

	canvas := image.NewRGBA(image.Rect(0, 0, Width, CardHeight*len(summaries)))
	for i, s := range summaries {
		rect := image.Rect(0, i*CardHeight, Width, (i+1)*CardHeight)
		r.drawBackground(canvas, rect, s.Background, assetsDir)
		r.drawText(canvas, rect, s, fs)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	name := resource.Sanitize(summaries[0].Title)
	if name == "" {
		name = "untitled"
	}
	out := filepath.Join(outDir, name+".png")

	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, canvas); err != nil {
		f.Close()
		return "", fmt.Errorf("encode %s: %w", out, err)
	}
	return out, f.Close()
}

func (r *Renderer) drawBackground(dst *image.RGBA, rect image.Rectangle, background, assetsDir string) {
	var candidates []string
	if background != "" {
		candidates = append(candidates, filepath.Join(assetsDir, background))
	}
	if r.Placeholder != "" {
		candidates = append(candidates, r.Placeholder)
	}

	drawn := false
	for _, path := range candidates {
		if img, err := decodeImage(path); err == nil {
			cover(dst, rect, img)
			drawn = true
			break
		}
	}
	if !drawn {
		draw.Draw(dst, rect, image.NewUniform(fillColor), image.Point{}, draw.Src)
	}
	draw.Draw(dst, rect, image.NewUniform(shadeColor), image.Point{}, draw.Over)
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// cover scales src to fill dr, cropping the centre to keep its aspect ratio.
func cover(dst draw.Image, dr image.Rectangle, src image.Image) {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 {
		return
	}
	want := float64(dr.Dx()) / float64(dr.Dy())
	if float64(sw)/float64(sh) > want {
		w := max(1, int(float64(sh)*want))
		x0 := sb.Min.X + (sw-w)/2
		sb = image.Rect(x0, sb.Min.Y, x0+w, sb.Max.Y)
	} else {
		h := max(1, int(float64(sw)/want))
		y0 := sb.Min.Y + (sh-h)/2
		sb = image.Rect(sb.Min.X, y0, sb.Max.X, y0+h)
	}
	draw.CatmullRom.Scale(dst, dr, src, sb, draw.Src, nil)
}

func (r *Renderer) drawText(dst *image.RGBA, rect image.Rectangle, s transcode.Summary, fs *faces) {
	top := rect.Min.Y
	textWidth := Width - 2*margin - badgeWidth - margin

	title := r.prefer(s.TitleUnicode, s.Title)
	artist := r.prefer(s.ArtistUnicode, s.Artist)
	bpm := FormatBPM(s.MinBPM, s.MaxBPM)
	tap, long := NoteCounts(s.Notes, s.Holds)

	drawString(dst, fs.title, textColor, margin, top+72, fit(fs.title, title, textWidth))
	drawString(dst, fs.body, textColor, margin, top+118, fit(fs.body, artist, textWidth))
	drawString(dst, fs.small, subtextColor, margin, top+156, fit(fs.small, "Mapped by "+s.Creator, textWidth))
	drawString(dst, fs.version, textColor, margin, top+204, fit(fs.version, s.Version, textWidth))
	drawString(dst, fs.small, subtextColor, margin, top+246,
		fmt.Sprintf("%dK    BPM %s    Length %s", s.Columns, bpm, FormatLength(s.Length)))
	drawString(dst, fs.small, subtextColor, margin, top+282, fmt.Sprintf("Notes %s    LN %s", tap, long))

	badge := image.Rect(Width-margin-badgeWidth, top+margin, Width-margin, top+margin+70)
	sr := "N/A"
	fill := Gradient(0)
	if s.Rating != nil {
		sr = fmt.Sprintf("%.2f", *s.Rating)
		fill = Gradient(*s.Rating)
	}
	draw.Draw(dst, badge, image.NewUniform(fill), image.Point{}, draw.Src)

	ink := color.RGBA{A: 0xff}
	if luminance(fill) < 140 {
		ink = textColor
	}
	w := font.MeasureString(fs.badge, sr).Round()
	drawString(dst, fs.badge, ink, badge.Min.X+(badge.Dx()-w)/2, badge.Max.Y-22, sr)
}

// prefer returns the unicode text when the bundled font can draw every rune
// of it.
func (r *Renderer) prefer(unicode, roman string) string {
	if unicode == "" || !covers(r.bold, unicode) {
		return roman
	}
	return unicode
}

func covers(f *opentype.Font, s string) bool {
	var buf sfnt.Buffer
	for _, c := range s {
		idx, err := f.GlyphIndex(&buf, c)
		if err != nil || idx == 0 {
			return false
		}
	}
	return true
}

func drawString(dst draw.Image, face font.Face, c color.Color, x, y int, s string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// fit shortens s with an ellipsis until it is at most width pixels wide.
func fit(face font.Face, s string, width int) string {
	if font.MeasureString(face, s).Round() <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		t := string(runes) + "..."
		if font.MeasureString(face, t).Round() <= width {
			return t
		}
	}
	return ""
}

func luminance(c color.RGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}
