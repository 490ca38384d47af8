package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	processCount int
	processIndex int
)

// sendManagerCmd runs only the outbound send manager, for deployments
// that scale delivery out across several processes sharded by
// process_count/process_index (§4.6) separately from the inbox/
// dispatch process.
func sendManagerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send-manager",
		Short: "Run only the outbound send manager, sharded across a process_count/process_index fleet",
		RunE:  runSendManager,
	}
	cmd.Flags().IntVar(&processCount, "process-count", 1, "total number of send-manager processes sharing delivery")
	cmd.Flags().IntVar(&processIndex, "process-index", 1, "this process's 1-based index within process-count")
	return cmd
}

func runSendManager(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, &shardOverride{count: processCount, index: processIndex})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.sender.Start(ctx); err != nil {
		return err
	}
	defer a.sender.Stop()

	<-ctx.Done()
	return nil
}
