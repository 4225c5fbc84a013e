package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aretw0/alertidx/pkg/core"
)

var (
	searchIndices []string
	searchQuery   string
	searchFrom    int
	searchSize    int
	searchSort    []string
	searchFields  []string
	searchGroups  []string
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search alerts or count them by group",
	Long: `Search alerts across indices with a filter expression, for example

  alertidx search -i bro_index -q 'score > 50 && status == "NEW"' --sort score:desc

Dotted field names are reachable through fields["source.type"]. With --group
the matching alerts are counted by the values of the given fields, nested in
order.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		d := openDao(ctx)
		defer d.Close()

		if len(searchGroups) > 0 {
			resp, err := d.Group(ctx, core.GroupRequest{Indices: searchIndices, Query: searchQuery, Groups: searchGroups})
			if err != nil {
				fatal("Group failed", err)
			}
			if searchJSON {
				printJSON(resp)
				return
			}
			printGroups(resp, 0)
			return
		}

		req := core.SearchRequest{
			Indices: searchIndices,
			Query:   searchQuery,
			From:    searchFrom,
			Size:    searchSize,
			Sort:    parseSort(searchSort),
			Fields:  searchFields,
		}
		resp, err := d.Search(ctx, req)
		if err != nil {
			fatal("Search failed", err)
		}
		if searchJSON {
			printJSON(resp)
			return
		}
		for _, r := range resp.Results {
			fmt.Printf("%s %s %v\n", color.CyanString(r.Index), r.ID, r.Source)
		}
		fmt.Printf("%d of %d matches\n", len(resp.Results), resp.Total)
	},
}

// parseSort reads field[:asc|:desc] specs.
func parseSort(specs []string) []core.SortField {
	out := make([]core.SortField, 0, len(specs))
	for _, spec := range specs {
		field, dir, _ := strings.Cut(spec, ":")
		out = append(out, core.SortField{Field: field, Descending: strings.EqualFold(dir, "desc")})
	}
	return out
}

func printGroups(resp core.GroupResponse, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, g := range resp.Results {
		fmt.Printf("%s%s=%s %s\n", indent, resp.GroupedBy, color.YellowString(g.Key), color.New(color.Bold).Sprint(g.Total))
		if g.Groups != nil {
			printGroups(*g.Groups, depth+1)
		}
	}
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringSliceVarP(&searchIndices, "index", "i", nil, "Indices to search (comma separated)")
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Filter expression (empty matches everything)")
	searchCmd.Flags().IntVar(&searchFrom, "from", 0, "Offset of the first result")
	searchCmd.Flags().IntVar(&searchSize, "size", 0, "Page size (default 10)")
	searchCmd.Flags().StringArrayVar(&searchSort, "sort", nil, "Sort by field[:desc] (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchFields, "fields", nil, "Fields to return (comma separated)")
	searchCmd.Flags().StringSliceVarP(&searchGroups, "group", "g", nil, "Count by these fields instead of returning documents")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output in JSON format")
	searchCmd.MarkFlagRequired("index")
}
