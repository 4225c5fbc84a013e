package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/dao"
)

var (
	getSensor string
	getIndex  string
)

var getCmd = &cobra.Command{
	Use:   "get [guid...]",
	Short: "Print the latest version of alerts",
	Long: `Print the latest stored version of one or more alerts. The index is
resolved from --sensor unless --index is given. Alerts that do not exist are
skipped when several guids are requested.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		d := openDao(ctx)
		defer d.Close()

		if len(args) == 1 && getIndex == "" {
			doc, err := d.GetLatest(ctx, args[0], getSensor)
			if err != nil {
				fatal("Error reading alert", err)
			}
			printDocument(doc)
			return
		}

		requests := make([]core.GetRequest, 0, len(args))
		for _, guid := range args {
			requests = append(requests, core.GetRequest{GUID: guid, SensorType: getSensor, Index: getIndex})
		}
		results, err := d.GetAllLatest(ctx, requests)
		if err != nil {
			fatal("Error reading alerts", err)
		}
		for _, res := range results {
			printDocument(res.Document)
		}
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVarP(&getSensor, "sensor", "s", "", "Sensor type of the alerts")
	getCmd.Flags().StringVarP(&getIndex, "index", "i", "", "Explicit index")
	getCmd.Flags().BoolVar(&dumpDocs, "dump", false, "Print the decoded Go value instead of JSON")
	getCmd.MarkFlagRequired("sensor")
}

// latest reads one alert, honoring an explicit index.
func latest(ctx context.Context, d *dao.Dao, guid, sensor, index string) (core.Document, error) {
	if index == "" {
		return d.GetLatest(ctx, guid, sensor)
	}
	results, err := d.GetAllLatest(ctx, []core.GetRequest{{GUID: guid, SensorType: sensor, Index: index}})
	if err != nil {
		return core.Document{}, err
	}
	if len(results) == 0 {
		return core.Document{}, fmt.Errorf("%s/%s: %w", index, guid, core.ErrNotFound)
	}
	return results[0].Document, nil
}
