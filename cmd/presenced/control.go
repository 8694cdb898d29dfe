package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/orchestra-mcp/presence/src/client"
	"github.com/orchestra-mcp/presence/src/service"
	"github.com/spf13/cobra"
)

func controlCmd() *cobra.Command {
	var server, key, action, eventID string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "control",
		Short: "Freeze, unfreeze or read the freeze flag of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = os.Getenv("PRESENCE_ADMIN_KEY")
			}
			res, err := client.New(server, timeout).Control(key, service.ControlAction(action), eventID)
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("control rejected (wrong key?)")
			}
			if err != nil {
				return err
			}
			fmt.Printf("scope=%s frozen=%t\n", res.Scope, res.Frozen)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&key, "key", "", "admin key (default $PRESENCE_ADMIN_KEY)")
	cmd.Flags().StringVar(&action, "action", "status", "freeze, unfreeze or status")
	cmd.Flags().StringVar(&eventID, "event", "", "event id (empty for global)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func snapshotCmd() *cobra.Command {
	var server, eventID, challengeID string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the polling snapshot of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := client.New(server, timeout).Snapshot(eventID, challengeID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&eventID, "event", "", "event id")
	cmd.Flags().StringVar(&challengeID, "challenge", "", "challenge id")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}
