// Command reportctl runs the report card pipeline on a local workbook
// without the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reportctl",
		Short: "Generate report cards from a marks spreadsheet",
		Long: `Generate report cards from an .xlsx marks sheet.

The first row of the first sheet is the header. Name, Father's Name,
Roll No. and Class are identifiers; every other numeric column is a
subject marked out of 100.

Results come from the configured AI model (GEMINI_API_KEY) or are computed
locally when no key is set.

Examples:
  reportctl inspect marks.xlsx
  reportctl generate marks.xlsx --out cards --format html
  reportctl generate marks.xlsx --out cards --school "Riverdale High" --theme green`,
		SilenceUsage: true,
	}
	root.AddCommand(newGenerateCmd(), newInspectCmd())
	return root
}
