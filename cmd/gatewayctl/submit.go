package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	submitWorkspace string
	submitTools     []string
	submitTurnsMax  int
	submitTimeout   int
)

var submitCmd = &cobra.Command{
	Use:   "submit <goal>",
	Short: "Submit a new task to the gateway",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitWorkspace, "workspace", "", "workspace root the task operates in (required)")
	submitCmd.Flags().StringSliceVar(&submitTools, "allowed-tools", nil, "comma-separated list of tools the agent may use")
	submitCmd.Flags().IntVar(&submitTurnsMax, "turns-max", 0, "maximum turns (0 uses the gateway default)")
	submitCmd.Flags().IntVar(&submitTimeout, "timeout-seconds", 0, "per-task timeout in seconds (0 uses the gateway default)")
	submitCmd.MarkFlagRequired("workspace")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if err := requireServer(); err != nil {
		return err
	}

	body := map[string]any{
		"goal":           args[0],
		"workspace_root": submitWorkspace,
	}
	if len(submitTools) > 0 {
		body["allowed_tools"] = submitTools
	}
	if submitTurnsMax > 0 {
		body["turns_max"] = submitTurnsMax
	}
	if submitTimeout > 0 {
		body["timeout_seconds"] = submitTimeout
	}

	var accepted map[string]any
	client := newAPIClient()
	if err := client.decodeJSON("POST", "/v1/tasks", body, &accepted); err != nil {
		return err
	}
	return printResult(accepted)
}

func printResult(v any) error {
	switch outputFmt {
	case "json":
		return printJSON(v)
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	default:
		return printJSON(v)
	}
}
