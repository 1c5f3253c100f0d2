package batch

import (
	"errors"

	"mcz2osz/archive"
	"mcz2osz/dotosu"
	"mcz2osz/malody"
	"mcz2osz/timeline"
	"mcz2osz/transcode"
)

// Failure categories as recorded in the history.
const (
	CategoryParse     = "_parse"
	CategoryMode      = "_mode"
	CategoryTempo     = "_tempo"
	CategoryContainer = "_container"
	CategoryPanic     = "_panic"
	CategoryOther     = "_other"
)

func Category(err error) string {
	switch {
	case errors.Is(err, ErrPanic):
		return CategoryPanic
	case errors.Is(err, malody.ErrParse):
		return CategoryParse
	case errors.Is(err, transcode.ErrUnsupportedMode), errors.Is(err, dotosu.ErrNotMania):
		return CategoryMode
	case errors.Is(err, timeline.ErrMissingTempoData), errors.Is(err, timeline.ErrInvalidTempo):
		return CategoryTempo
	case errors.Is(err, archive.ErrContainerIO):
		return CategoryContainer
	}
	return CategoryOther
}

// skip reports a chart that did not convert.
func (o *Orchestrator) skip(unit string, err error) {
	o.logger().Printf("skip %s: %v", unit, err)
	o.record(Category(err), unit, err)
}

// fail reports a container that produced no output.
func (o *Orchestrator) fail(container string, err error) {
	o.logger().Printf("container %s: %v", container, err)
	o.record(Category(err), container, err)
}

func (o *Orchestrator) record(category, unit string, err error) {
	if o.Store == nil {
		return
	}
	if rerr := o.Store.RecordFailure(category, unit, err.Error()); rerr != nil {
		o.logger().Printf("history: %v", rerr)
	}
}
