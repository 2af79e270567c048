package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/thunder/internal/cli"
	"github.com/aretw0/thunder/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>...",
	Short: "Generate a project from a prompt",
	Long: `Runs one prompt through the model and writes the resulting files into
the sandbox directory. With --session the prompt continues an existing session.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		asJSON, _ := cmd.Flags().GetBool("json")

		app, done, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer done()

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		out := cmd.OutOrStdout()
		s, err := app.Generate(sigCtx, sessionID, strings.Join(args, " "))
		if err != nil && s == nil {
			return err
		}
		if asJSON {
			if encErr := writeJSON(out, s); encErr != nil {
				return encErr
			}
			return err
		}

		render := tui.NewRenderer(os.Stdout)
		text, renderErr := render(tui.SessionMarkdown(s))
		if renderErr != nil {
			text = tui.SessionMarkdown(s)
		}
		fmt.Fprint(out, text)

		if err != nil {
			return err
		}
		if app.Workspace == nil {
			cli.PrintSystemMessage(out, "No sandbox configured; use --sandbox to write files.")
			return nil
		}
		if dir, err := app.Workspace.Dir(s.ID); err == nil {
			cli.PrintSystemMessage(out, "Files written to %s", dir)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringP("session", "s", "", "Continue this session instead of starting one")
	generateCmd.Flags().Bool("json", false, "Print the session as JSON")
}
