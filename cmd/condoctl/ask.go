package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a condominium law question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Query.Ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if result.DocumentRequest != nil {
			fmt.Fprintf(out, "Documento solicitado: %s\n\nCampos:\n", result.DocumentRequest.DocumentName)
			for _, f := range result.Fields {
				required := ""
				if f.Required {
					required = " (obrigatório)"
				}
				fmt.Fprintf(out, "  - %s%s\n", f.Label, required)
			}
			return nil
		}

		fmt.Fprintln(out, result.Answer)
		if len(result.Sources) > 0 {
			fmt.Fprintln(out, "\nFontes:")
			for _, s := range result.Sources {
				fmt.Fprintf(out, "  - %s\n", s.Source())
			}
		}
		if result.Suggestion != nil {
			fmt.Fprintf(out, "\n%s\n", result.Suggestion.SuggestionMessage)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
