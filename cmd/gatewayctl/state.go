package main

import (
	"time"

	"github.com/spf13/cobra"
)

var stateWatch bool

var stateCmd = &cobra.Command{
	Use:   "state <session-id>",
	Short: "Poll a session's live state",
	Args:  cobra.ExactArgs(1),
	RunE:  runState,
}

func init() {
	stateCmd.Flags().BoolVar(&stateWatch, "watch", false, "poll until the session reaches a terminal status")
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, args []string) error {
	if err := requireServer(); err != nil {
		return err
	}
	id := args[0]
	client := newAPIClient()

	for {
		var state map[string]any
		if err := client.decodeJSON("GET", "/v1/sessions/"+id+"/state", nil, &state); err != nil {
			return err
		}
		if !stateWatch {
			return printResult(state)
		}
		if err := printResult(state); err != nil {
			return err
		}
		status, _ := state["status"].(string)
		if status == "done" || status == "failed" || status == "aborted" {
			return nil
		}
		time.Sleep(2 * time.Second)
	}
}
