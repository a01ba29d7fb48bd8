package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/your-org/facerec/internal/queue"
	"github.com/your-org/facerec/pkg/dto"
)

var (
	enqueueFrom int64
	enqueueTo   int64
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [media_id...]",
	Short: "Push face jobs for the given media ids",
	Long: `Push one job per media id onto the configured queue, in the same
format the owning application uses. Ids can be listed as arguments or given
as an inclusive range with --from and --to.`,
	Example: `  facectl enqueue 12 13 14
  facectl enqueue --from 100 --to 250`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := collectIDs(args, enqueueFrom, enqueueTo)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		q, err := queue.Open(ctx, cfg.Queue)
		if err != nil {
			return fmt.Errorf("connect to queue: %w", err)
		}
		defer q.Close()

		var bar io.Writer = io.Discard
		if len(ids) > 1 {
			pb := progressbar.NewOptions(len(ids),
				progressbar.OptionSetDescription("enqueue"),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
			)
			defer pb.Finish()
			bar = pb
		}

		n, err := enqueueIDs(ctx, q, ids, bar)
		fmt.Fprintf(cmd.OutOrStdout(), "\nenqueued %d of %d jobs on %s %q\n", n, len(ids), cfg.Queue.Transport, cfg.Queue.Key)
		return err
	},
}

func init() {
	enqueueCmd.Flags().Int64Var(&enqueueFrom, "from", 0, "first media id of a range")
	enqueueCmd.Flags().Int64Var(&enqueueTo, "to", 0, "last media id of a range (inclusive)")
	enqueueCmd.MarkFlagsRequiredTogether("from", "to")
	rootCmd.AddCommand(enqueueCmd)
}

// collectIDs merges positional ids with the --from/--to range.
func collectIDs(args []string, from, to int64) ([]int64, error) {
	var ids []int64
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid media id %q", a)
		}
		ids = append(ids, id)
	}
	if from != 0 || to != 0 {
		if from <= 0 || to < from {
			return nil, fmt.Errorf("invalid range %d..%d", from, to)
		}
		for id := from; id <= to; id++ {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no media ids given")
	}
	return ids, nil
}

// enqueueIDs pushes one message per id and advances progress by one byte
// per job. It stops at the first failure and returns how many were pushed.
func enqueueIDs(ctx context.Context, sink queue.JobSink, ids []int64, progress io.Writer) (int, error) {
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		msg, err := dto.NewQueueMessage(id)
		if err != nil {
			return i, err
		}
		if err := sink.Push(ctx, msg); err != nil {
			return i, fmt.Errorf("enqueue media %d: %w", id, err)
		}
		_, _ = progress.Write([]byte{0})
	}
	return len(ids), nil
}
