package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/aretw0/thunder/internal/cli"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse action markup offline",
	Long: `Reads model output from a file (or stdin) and prints the steps, file tree
or mount descriptor it produces. No model or sandbox is involved.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		markdown, _ := cmd.Flags().GetBool("markdown")

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return err
		}

		res := cli.ParseText(cmd.Context(), string(data), markdown)
		return res.WriteJSON(cmd.OutOrStdout(), format)
	},
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringP("format", "f", "all", "Output: steps, tree, mount or all")
	parseCmd.Flags().Bool("markdown", false, "Also extract files from fenced code blocks")
}
