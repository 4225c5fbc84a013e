package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/dao"
)

func main() {
	count := flag.Int("count", 1000, "Number of alerts to generate")
	uri := flag.String("uri", "", "Store URI (default: a temporary kv database)")
	concurrency := flag.Int("concurrency", 0, "Parallel lookups and writes (0 keeps the default)")
	keep := flag.Bool("keep", false, "Keep the temporary database after running")
	flag.Parse()

	target := *uri
	if target == "" {
		benchDir, err := os.MkdirTemp("", "alertidx_bench_")
		if err != nil {
			panic(err)
		}
		defer func() {
			if !*keep {
				os.RemoveAll(benchDir)
			} else {
				fmt.Printf("Keeping bench dir: %s\n", benchDir)
			}
		}()
		target = "kv://" + filepath.Join(benchDir, "db")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	d := dao.New(dao.WithLogger(logger))
	ctx := context.TODO()
	err := d.EnsureInitialized(ctx, dao.AccessConfig{
		URI:         target,
		Concurrency: *concurrency,
		Indices:     map[string]string{"bro": "bro_index", "snort": "snort_index"},
	})
	if err != nil {
		panic(err)
	}
	defer d.Close()

	sensors := []string{"bro", "snort"}
	requests := make([]core.UpdateRequest, 0, *count)
	gets := make([]core.GetRequest, 0, *count)
	for i := range *count {
		guid := fmt.Sprintf("alert-%06d", i)
		sensor := sensors[i%len(sensors)]
		requests = append(requests, core.UpdateRequest{Document: core.Document{
			GUID:       guid,
			SensorType: sensor,
			Timestamp:  time.Now().UnixMilli(),
			Fields:     core.Fields{"score": float64(i % 100), "status": "NEW"},
		}})
		gets = append(gets, core.GetRequest{GUID: guid, SensorType: sensor})
	}

	fmt.Printf("Writing %d alerts to %s...\n", *count, target)
	startWrite := time.Now()
	if _, err := d.BatchUpdate(ctx, requests); err != nil {
		panic(err)
	}
	write := time.Since(startWrite)

	startGet := time.Now()
	found, err := d.GetAllLatest(ctx, gets)
	if err != nil {
		panic(err)
	}
	get := time.Since(startGet)

	startSearch := time.Now()
	resp, err := d.Search(ctx, core.SearchRequest{
		Indices: []string{"bro_index", "snort_index"},
		Query:   "score >= 90",
		Sort:    []core.SortField{{Field: "score", Descending: true}},
	})
	if err != nil {
		fmt.Printf("Search skipped: %v\n", err)
	}
	search := time.Since(startSearch)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d alerts):\n", *count)
	fmt.Printf("  BatchUpdate:  %v\n", write)
	fmt.Printf("  GetAllLatest: %v (found %d)\n", get, len(found))
	fmt.Printf("  Search:       %v (matches %d)\n", search, resp.Total)
	fmt.Printf("--------------------------------------------------\n")
}
