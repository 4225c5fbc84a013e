package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aretw0/alertidx/pkg/core"
)

var (
	updateFile  string
	updateIndex string
	batchFile   string
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace a whole alert",
	Long:  `Write the JSON document in --file as the new version of the alert it names.
A document without a guid is created under a fresh one.`,
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(updateFile)
		if err != nil {
			fatal("Failed to read document", err)
		}
		doc, err := core.UnmarshalDocument(data)
		if err != nil {
			fatal("Failed to parse document", err)
		}
		if doc.GUID == "" {
			doc.GUID = uuid.NewString()
		}

		ctx := context.Background()
		d := openDao(ctx)
		defer d.Close()

		stored, err := d.Update(ctx, doc, updateIndex)
		if err != nil {
			fatal("Failed to update alert", err)
		}
		fmt.Printf("Alert '%s' written to %s at version %d.\n", stored.GUID, stored.Index, stored.Version)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Write several alerts",
	Long: `Write every document of the JSON array in --file. Each element may carry
an "index" key naming its target index. Failures are reported per alert and do
not stop the others.`,
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(batchFile)
		if err != nil {
			fatal("Failed to read batch", err)
		}
		requests, err := parseBatch(data)
		if err != nil {
			fatal("Failed to parse batch", err)
		}

		ctx := context.Background()
		d := openDao(ctx)
		defer d.Close()

		results, err := d.BatchUpdate(ctx, requests)
		for _, res := range results {
			if res.Err != nil {
				fmt.Printf("%s %s: %v\n", color.RedString("FAIL"), res.Request.Document.GUID, res.Err)
				continue
			}
			fmt.Printf("%s %s -> %s v%d\n", color.GreenString("OK"), res.Document.GUID, res.Document.Index, res.Document.Version)
		}
		if err != nil {
			os.Exit(1)
		}
	},
}

func parseBatch(data []byte) ([]core.UpdateRequest, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("batch must be a JSON array: %w", err)
	}
	requests := make([]core.UpdateRequest, 0, len(raw))
	for i, elem := range raw {
		doc, err := core.UnmarshalDocument(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		index, _ := doc.Fields["index"].(string)
		delete(doc.Fields, "index")
		requests = append(requests, core.UpdateRequest{Document: doc, Index: index})
	}
	return requests, nil
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVarP(&updateFile, "file", "f", "", "JSON document to write")
	updateCmd.Flags().StringVarP(&updateIndex, "index", "i", "", "Explicit index")
	updateCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "JSON array of documents")
	batchCmd.MarkFlagRequired("file")
}
