package main

import (
	"context"
	"fmt"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/alertidx/pkg/core"
)

var (
	commentSensor    string
	commentIndex     string
	commentAuthor    string
	commentText      string
	commentTimestamp int64
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Add or remove analyst comments on an alert",
}

var commentAddCmd = &cobra.Command{
	Use:   "add [guid]",
	Short: "Append a comment",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := commentRequest(args[0])
		if req.Comment.Timestamp == 0 {
			req.Comment.Timestamp = time.Now().UnixMilli()
		}

		ctx := context.Background()
		d := openDao(ctx)
		defer d.Close()

		stored, err := d.AddCommentToAlert(ctx, req)
		if err != nil {
			fatal("Failed to add comment", err)
		}
		fmt.Printf("Comment added to '%s' (%d comments, version %d).\n", stored.GUID, len(stored.Comments()), stored.Version)
	},
}

var commentRemoveCmd = &cobra.Command{
	Use:   "remove [guid]",
	Short: "Remove a comment matching author, text and timestamp",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := commentRequest(args[0])

		ctx := context.Background()
		d := openDao(ctx)
		defer d.Close()

		stored, err := d.RemoveCommentFromAlert(ctx, req)
		if err != nil {
			fatal("Failed to remove comment", err)
		}
		fmt.Printf("Alert '%s' has %d comments (version %d).\n", stored.GUID, len(stored.Comments()), stored.Version)
	},
}

func commentRequest(guid string) core.CommentRequest {
	author := commentAuthor
	if author == "" {
		if u, err := user.Current(); err == nil {
			author = u.Username
		}
	}
	return core.CommentRequest{
		GUID:       guid,
		SensorType: commentSensor,
		Index:      commentIndex,
		Comment: core.Comment{
			Author:    author,
			Text:      commentText,
			Timestamp: commentTimestamp,
		},
	}
}

func init() {
	rootCmd.AddCommand(commentCmd)
	commentCmd.AddCommand(commentAddCmd, commentRemoveCmd)

	commentCmd.PersistentFlags().StringVarP(&commentSensor, "sensor", "s", "", "Sensor type of the alert")
	commentCmd.PersistentFlags().StringVarP(&commentIndex, "index", "i", "", "Explicit index")
	commentCmd.PersistentFlags().StringVarP(&commentAuthor, "author", "a", "", "Comment author (default: current user)")
	commentCmd.PersistentFlags().StringVarP(&commentText, "text", "m", "", "Comment text")
	commentCmd.PersistentFlags().Int64Var(&commentTimestamp, "timestamp", 0, "Comment time in epoch milliseconds (default: now for add)")
	commentCmd.MarkPersistentFlagRequired("sensor")
	commentCmd.MarkPersistentFlagRequired("text")
}
