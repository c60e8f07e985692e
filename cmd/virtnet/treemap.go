package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"virtnet/internal/treemap"
)

func newTreemapCmd() *cobra.Command {
	var (
		input   string
		output  string
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "treemap [file]",
		Short: "Build a CIDR treemap from a YAML or JSON request file",
		Long: `Reads {supernet, cidrDict} from the file (or stdin when the file is "-"
or omitted) and prints the {treemap, cidrSuffixes} document as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				input = args[0]
			}

			var in io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			req, err := treemap.DecodeRequest(in)
			if err != nil {
				return err
			}
			res, err := req.Build()
			if err != nil {
				return fmt.Errorf("build treemap: %w", err)
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			enc := json.NewEncoder(out)
			if !compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "request file (YAML or JSON)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to a file instead of stdout")
	cmd.Flags().BoolVar(&compact, "compact", false, "print without indentation")
	return cmd
}
