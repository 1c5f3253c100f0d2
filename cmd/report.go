package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"mcz2osz/batch"
	"mcz2osz/transcode"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

var rule = strings.Repeat("-", 80)

func formatDuration(d time.Duration) string {
	return durafmt.Parse(d).LimitFirstN(2).Format(shortUnits)
}

func printChart(w io.Writer, s transcode.Summary) {
	fmt.Fprintf(w, "\n%s\n", s)
	fmt.Fprintf(w, "Length: %s\n", formatDuration(time.Duration(s.Length)*time.Millisecond))
	if s.Audio > 0 {
		fmt.Fprintf(w, "Audio: %s\n", formatDuration(s.Audio))
	}
}

// printReport writes the conversion summary: one block per output, then the
// totals.
func printReport(w io.Writer, outputs []batch.Output, elapsed time.Duration) {
	fmt.Fprintln(w, "\nConversion Summary:")
	fmt.Fprintln(w, rule)
	total := 0
	for _, out := range outputs {
		fmt.Fprintf(w, "OSZ File: %s (%s)\n", out.Path, humanize.Bytes(uint64(max(out.Size, 0))))
		fmt.Fprintf(w, "Contains %d beatmaps:\n", len(out.Summaries))
		for _, s := range out.Summaries {
			printChart(w, s)
		}
		fmt.Fprintf(w, "%s\n\n", rule)
		total += len(out.Summaries)
	}
	fmt.Fprintf(w, "Total processed files: %d\n", len(outputs))
	fmt.Fprintf(w, "Total converted beatmaps: %d\n", total)
	fmt.Fprintf(w, "Elapsed: %s\n", formatDuration(elapsed))
}

func printInspection(w io.Writer, path string, summaries []transcode.Summary) {
	fmt.Fprintf(w, "OSZ File: %s\n", path)
	fmt.Fprintf(w, "Contains %d beatmaps:\n", len(summaries))
	for _, s := range summaries {
		printChart(w, s)
	}
	fmt.Fprintf(w, "%s\n\n", rule)
}
