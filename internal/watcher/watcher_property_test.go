//go:build property

package watcher

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates the batching invariants of the debouncer
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: a flushed batch holds each path once, sorted, keeping the last event
	properties.Property("flush deduplicates and sorts", prop.ForAll(
		func(indexes []int) bool {
			d := newDebouncer(time.Hour)
			last := make(map[string]EventType)
			for i, idx := range indexes {
				path := fmt.Sprintf("t%d.html", idx%7)
				typ := EventType(i % 4)
				d.pending = append(d.pending, ChangeEvent{Path: path, Type: typ})
				last[path] = typ
			}

			d.flush()

			if len(indexes) == 0 {
				return len(d.output) == 0
			}
			batch := <-d.output
			if len(batch) != len(last) {
				return false
			}
			if !sort.SliceIsSorted(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path }) {
				return false
			}
			for _, ev := range batch {
				if last[ev.Path] != ev.Type {
					return false
				}
			}
			return len(d.pending) == 0
		},
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	// Property: extension filters ignore case and the leading dot
	properties.Property("extension filter", prop.ForAll(
		func(name string, upper bool) bool {
			ext := "html"
			if upper {
				ext = "HTML"
			}
			return ExtensionFilter("html")(name+"."+ext) &&
				!ExtensionFilter(".html")(name+".txt")
		},
		gen.Identifier(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
