package main

import (
	"github.com/spf13/cobra"
)

var abortCmd = &cobra.Command{
	Use:   "abort <session-id>",
	Short: "Abort a running session",
	Args:  cobra.ExactArgs(1),
	RunE:  runAbort,
}

func init() {
	rootCmd.AddCommand(abortCmd)
}

func runAbort(cmd *cobra.Command, args []string) error {
	if err := requireServer(); err != nil {
		return err
	}
	id := args[0]

	var result map[string]any
	client := newAPIClient()
	if err := client.decodeJSON("POST", "/v1/sessions/"+id+"/abort", nil, &result); err != nil {
		return err
	}
	return printResult(result)
}
