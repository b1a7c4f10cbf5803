package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	logsStream string
	logsLines  int
	logsGrep   string
)

var logsCmd = &cobra.Command{
	Use:   "logs <session-id>",
	Short: "Tail a session's redacted stdout or stderr",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().StringVar(&logsStream, "stream", "stdout", "stdout or stderr")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of lines to tail")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "literal substring filter")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	if err := requireServer(); err != nil {
		return err
	}
	id := args[0]

	q := url.Values{}
	q.Set("stream", logsStream)
	q.Set("n", strconv.Itoa(logsLines))
	if logsGrep != "" {
		q.Set("grep", logsGrep)
	}

	var body struct {
		Lines []string `json:"lines"`
	}
	client := newAPIClient()
	if err := client.decodeJSON("GET", "/v1/sessions/"+id+"/logtail?"+q.Encode(), nil, &body); err != nil {
		return err
	}
	for _, line := range body.Lines {
		fmt.Println(line)
	}
	return nil
}
