package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sanity-io/litter"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/aretw0/alertidx/pkg/core"
)

var dumpDocs bool

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fatal("Error encoding JSON", err)
	}
}

// printDocument writes the wire form of doc, or a Go dump with --dump.
func printDocument(doc core.Document) {
	if dumpDocs {
		litter.Config.HidePrivateFields = false
		fmt.Println(litter.Sdump(doc))
		return
	}
	printJSON(core.ToWire(doc))
}

func indented(doc core.Document) string {
	data, err := json.MarshalIndent(core.ToWire(doc), "", "  ")
	if err != nil {
		fatal("Error encoding JSON", err)
	}
	return string(data) + "\n"
}

// writeDiff prints a line diff between the wire forms of two documents.
func writeDiff(w io.Writer, before, after core.Document) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(indented(before), indented(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	added := color.New(color.FgGreen).SprintFunc()
	removed := color.New(color.FgRed).SprintFunc()
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				fmt.Fprint(w, added("+ "+line))
			case diffmatchpatch.DiffDelete:
				fmt.Fprint(w, removed("- "+line))
			default:
				fmt.Fprint(w, "  "+line)
			}
		}
	}
}

// parseValue reads a flag value as JSON and falls back to a plain string.
func parseValue(raw string) any {
	var v any
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&v); err != nil || decoder.More() {
		return raw
	}
	return core.Normalize(v)
}
