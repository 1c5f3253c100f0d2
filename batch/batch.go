// Package batch converts whole containers and directory trees of them.
// Charts inside one container, and containers inside one tree, are converted
// in parallel; a failure is reported and recorded at the boundary of the unit
// it happened in and never stops its siblings.
package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"mcz2osz/archive"
	"mcz2osz/dotosu"
	"mcz2osz/resource"
	"mcz2osz/transcode"
)

const (
	ChartExt      = ".mc"
	ContainerExt  = ".mcz"
	OutputExt     = ".osz"
	scratchPrefix = "mcz2osz-"
	beatmapExt    = ".osu"
)

var ErrNothingToConvert = errors.New("nothing to convert")

// Recorder keeps the history of conversions. *store.Store implements it.
type Recorder interface {
	RecordConversion(container, output string, summaries []transcode.Summary) error
	RecordFailure(category, unit, reason string) error
}

type Orchestrator struct {
	Transcoder *transcode.Transcoder
	Workers    int
	Store      Recorder
	Logger     *log.Logger
	// PostProcess gets the summaries of every written or inspected
	// container, sorted by rating, while its extracted assets still exist.
	PostProcess func(summaries []transcode.Summary, assetsDir string) error
}

type Output struct {
	Container string
	Path      string
	Size      int64
	Summaries []transcode.Summary
}

func (o *Orchestrator) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

func (o *Orchestrator) workers() int {
	if o.Workers < 1 {
		return runtime.NumCPU()
	}
	return o.Workers
}

// ConvertContainer converts every chart in the .mcz at path and writes the
// result as <name>.osz next to it.
func (o *Orchestrator) ConvertContainer(path string) (*Output, error) {
	dir, cleanup, err := archive.Scratch(scratchPrefix)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if _, err := archive.Extract(path, dir); err != nil {
		return nil, err
	}
	charts, err := findFiles(dir, ChartExt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archive.ErrContainerIO, err)
	}

	set := resource.NewSet()
	name := filepath.Base(path)
	summaries := fanOut(o.workers(), charts, func(chart string) (transcode.Summary, bool) {
		var res *transcode.Result
		err := guard(func() (err error) {
			res, err = o.Transcoder.File(chart, set)
			return err
		})
		if err != nil {
			o.skip(name+"/"+filepath.Base(chart), err)
			return transcode.Summary{}, false
		}
		return res.Summary, true
	})
	if len(summaries) == 0 {
		return nil, fmt.Errorf("%w: %s: no convertible chart among %d", archive.ErrContainerIO, name, len(charts))
	}

	out := &Output{
		Container: path,
		Path:      strings.TrimSuffix(path, filepath.Ext(path)) + OutputExt,
		Summaries: summaries,
	}
	if err := o.finish(out, set, dir); err != nil {
		return nil, err
	}
	return out, nil
}

// ConvertChart packs one loose .mc, and the files it references, into
// <stem>.osz next to it.
func (o *Orchestrator) ConvertChart(path string) (*Output, error) {
	set := resource.NewSet()
	var res *transcode.Result
	err := guard(func() (err error) {
		res, err = o.Transcoder.File(path, set)
		return err
	})
	if err != nil {
		o.skip(filepath.Base(path), err)
		return nil, err
	}

	out := &Output{
		Container: path,
		Path:      strings.TrimSuffix(path, filepath.Ext(path)) + OutputExt,
		Summaries: []transcode.Summary{res.Summary},
	}
	if err := o.finish(out, set, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) finish(out *Output, set *resource.Set, assetsDir string) error {
	if err := archive.Write(out.Path, set.Paths()); err != nil {
		return err
	}
	if info, err := os.Stat(out.Path); err == nil {
		out.Size = info.Size()
	}

	slices.SortStableFunc(out.Summaries, transcode.ByRating)
	o.postProcess(out.Summaries, assetsDir)

	if o.Store != nil {
		if err := o.Store.RecordConversion(out.Container, out.Path, out.Summaries); err != nil {
			o.logger().Printf("history: %v", err)
		}
	}
	return nil
}

func (o *Orchestrator) postProcess(summaries []transcode.Summary, assetsDir string) {
	if o.PostProcess == nil {
		return
	}
	if err := guard(func() error { return o.PostProcess(summaries, assetsDir) }); err != nil {
		o.logger().Printf("warning: %v", err)
	}
}

// ConvertDir converts every .mcz under dir. Outputs come back sorted by
// container path; failed containers are logged and left out.
func (o *Orchestrator) ConvertDir(dir string) ([]Output, error) {
	containers, err := findFiles(dir, ContainerExt)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, fmt.Errorf("%w: no %s files under %s", ErrNothingToConvert, ContainerExt, dir)
	}

	outputs := fanOut(o.workers(), containers, func(path string) (Output, bool) {
		var out *Output
		err := guard(func() (err error) {
			out, err = o.ConvertContainer(path)
			return err
		})
		if err != nil {
			o.fail(path, err)
			return Output{}, false
		}
		return *out, true
	})
	slices.SortFunc(outputs, func(a, b Output) int { return strings.Compare(a.Container, b.Container) })
	return outputs, nil
}

// InspectContainer summarizes the osu!mania charts of an .osz.
func (o *Orchestrator) InspectContainer(path string) ([]transcode.Summary, error) {
	dir, cleanup, err := archive.Scratch(scratchPrefix)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if _, err := archive.Extract(path, dir); err != nil {
		return nil, err
	}
	beatmaps, err := o.OpenSet(dir)
	if err != nil {
		o.logger().Printf("warning: %s: %v", filepath.Base(path), err)
	}

	var summaries []transcode.Summary
	for _, b := range beatmaps {
		if err := b.CheckMania(); err != nil {
			o.logger().Printf("skip %s [%s]: %v", filepath.Base(path), b.Metadata.Version, err)
			continue
		}
		summaries = append(summaries, o.Transcoder.Summarize(b))
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("%w: %s: no osu!mania chart", ErrNothingToConvert, filepath.Base(path))
	}

	slices.SortStableFunc(summaries, transcode.ByRating)
	o.postProcess(summaries, dir)
	return summaries, nil
}

// InspectDir runs InspectContainer over every .osz under dir.
func (o *Orchestrator) InspectDir(dir string) (map[string][]transcode.Summary, error) {
	containers, err := findFiles(dir, OutputExt)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, fmt.Errorf("%w: no %s files under %s", ErrNothingToConvert, OutputExt, dir)
	}

	type inspected struct {
		path      string
		summaries []transcode.Summary
	}
	results := fanOut(o.workers(), containers, func(path string) (inspected, bool) {
		var summaries []transcode.Summary
		err := guard(func() (err error) {
			summaries, err = o.InspectContainer(path)
			return err
		})
		if err != nil {
			o.fail(path, err)
			return inspected{}, false
		}
		return inspected{path, summaries}, true
	})

	out := make(map[string][]transcode.Summary, len(results))
	for _, r := range results {
		out[r.path] = r.summaries
	}
	return out, nil
}

// OpenSet decodes every .osu under dir. Files that fail to decode are left
// out and the first failure is returned alongside the rest.
func (o *Orchestrator) OpenSet(dir string) ([]*dotosu.Beatmap, error) {
	paths, err := findFiles(dir, beatmapExt)
	if err != nil {
		return nil, err
	}

	beatmaps := make([]*dotosu.Beatmap, 0, len(paths))
	var firstErr error
	var firstErrPath string
	for _, p := range paths {
		bm, e := dotosu.DecodeFile(p)
		if e != nil {
			if firstErr == nil {
				firstErr = e
				firstErrPath = p
			}
			continue
		}
		beatmaps = append(beatmaps, bm)
	}

	if firstErr != nil {
		return beatmaps, fmt.Errorf("decoded %d/%d .osu files; first failure %s: %w", len(beatmaps), len(paths), filepath.Base(firstErrPath), firstErr)
	}
	return beatmaps, nil
}

// findFiles lists the files under dir with the given extension, in any case,
// sorted by path.
func findFiles(dir, ext string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ext) {
			paths = append(paths, path)
		}
		return nil
	})
	slices.Sort(paths)
	return paths, err
}
