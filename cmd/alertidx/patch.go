package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/patch"
)

var (
	patchSensor  string
	patchIndex   string
	patchEdits   []patchEdit
	patchVersion int64
	patchDryRun  bool
)

var patchCmd = &cobra.Command{
	Use:   "patch [guid]",
	Short: "Apply field edits to the latest version of an alert",
	Long: `Apply field edits to the latest stored version of an alert.

  --set /status=ESCALATE     replace or create a field
  --remove /owner            delete a field
  --append /tags="c2"        append to a list field

Edits apply in the order they appear on the command line. Paths are JSON
Pointers into the alert fields. Values are parsed as JSON and
fall back to plain strings. --dry-run prints the change without writing it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req, err := buildPatch(args[0])
		if err != nil {
			fatal("Invalid patch", err)
		}
		if cmd.Flags().Changed("expect-version") {
			req.ExpectedVersion = &patchVersion
		}

		ctx := context.Background()
		d := openDao(ctx)
		defer d.Close()

		if patchDryRun {
			base, err := latest(ctx, d, req.GUID, req.SensorType, req.Index)
			if err != nil {
				fatal("Error reading alert", err)
			}
			patched, err := patch.Apply(base, req)
			if err != nil {
				fatal("Patch does not apply", err)
			}
			patched.Timestamp = time.Now().UnixMilli()
			writeDiff(os.Stdout, base, patched)
			return
		}

		stored, err := d.Patch(ctx, nil, req, 0)
		if err != nil {
			fatal("Failed to patch alert", err)
		}
		fmt.Printf("Alert '%s' patched to version %d.\n", stored.GUID, stored.Version)
	},
}

// patchEdit is one --set, --remove or --append occurrence.
type patchEdit struct {
	op  core.PatchOp
	raw string
}

// editFlag appends every occurrence of its flag to patchEdits so the three
// flags share one ordered list.
type editFlag core.PatchOp

func (f editFlag) String() string { return "" }

func (f editFlag) Set(raw string) error {
	patchEdits = append(patchEdits, patchEdit{op: core.PatchOp(f), raw: raw})
	return nil
}

func (f editFlag) Type() string {
	if core.PatchOp(f) == core.OpRemove {
		return "path"
	}
	return "path=value"
}

func buildPatch(guid string) (core.PatchRequest, error) {
	req := core.PatchRequest{GUID: guid, SensorType: patchSensor, Index: patchIndex}
	for _, edit := range patchEdits {
		if edit.op == core.OpRemove {
			req.Operations = append(req.Operations, core.PatchOperation{Op: core.OpRemove, Path: edit.raw})
			continue
		}
		path, value, ok := strings.Cut(edit.raw, "=")
		if !ok {
			return req, fmt.Errorf("--%s %q: expected path=value", edit.op, edit.raw)
		}
		req.Operations = append(req.Operations, core.PatchOperation{Op: edit.op, Path: path, Value: parseValue(value)})
	}
	return req, patch.Validate(req)
}

func init() {
	rootCmd.AddCommand(patchCmd)
	patchCmd.Flags().StringVarP(&patchSensor, "sensor", "s", "", "Sensor type of the alert")
	patchCmd.Flags().StringVarP(&patchIndex, "index", "i", "", "Explicit index")
	patchCmd.Flags().Var(editFlag(core.OpSet), "set", "path=value to set (repeatable)")
	patchCmd.Flags().Var(editFlag(core.OpRemove), "remove", "path to remove (repeatable)")
	patchCmd.Flags().Var(editFlag(core.OpAppend), "append", "path=value to append (repeatable)")
	patchCmd.Flags().Int64Var(&patchVersion, "expect-version", 0, "Only patch when the stored version matches")
	patchCmd.Flags().BoolVar(&patchDryRun, "dry-run", false, "Print the resulting change without writing it")
	patchCmd.MarkFlagRequired("sensor")
}
