package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dray-io/objaccess/internal/objectstore/oss"
)

type classifyResult struct {
	Status    int               `json:"status"`
	Kind      string            `json:"kind"`
	Retryable bool              `json:"retryable"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}

func newClassifyCmd() *cobra.Command {
	var (
		status     int
		bodyFile   string
		headers    []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "classify --status <code> [--body-file <file>]",
		Short: "Translate an HTTP error response into a normalized error",
		Long: `Classify runs the backend error translator on a recorded response.
The body is read from --body-file, or from stdin when the file is "-".`,
		Args: cobra.NoArgs,
		// Offline: no config or backend needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			var body []byte
			var err error
			switch bodyFile {
			case "":
			case "-":
				body, err = io.ReadAll(cmd.InOrStdin())
			default:
				body, err = os.ReadFile(bodyFile)
			}
			if err != nil {
				return err
			}

			header := http.Header{}
			for _, h := range headers {
				name, value, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("invalid header %q, want Name: value", h)
				}
				header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
			}

			oerr := oss.Classify(status, header, body)
			out := cmd.OutOrStdout()
			if jsonOutput {
				res := classifyResult{
					Status:    status,
					Kind:      oerr.Kind.String(),
					Retryable: oerr.Retryable,
					Message:   oerr.Message,
					Context:   map[string]string{},
				}
				for _, cv := range oerr.Context {
					res.Context[cv.Key] = cv.Value
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			fmt.Fprintf(out, "Kind:      %s\n", oerr.Kind)
			fmt.Fprintf(out, "Retryable: %t\n", oerr.Retryable)
			fmt.Fprintf(out, "Message:   %s\n", oerr.Message)
			for _, cv := range oerr.Context {
				fmt.Fprintf(out, "Context:   %s=%s\n", cv.Key, cv.Value)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&status, "status", 0, "HTTP status code of the response")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", `file holding the response body ("-" for stdin)`)
	cmd.Flags().StringArrayVar(&headers, "header", nil, `response header as "Name: value" (repeatable)`)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
