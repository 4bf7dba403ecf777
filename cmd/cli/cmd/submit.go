package cmd

import (
	"github.com/spf13/cobra"

	"printsmart/pkg/api"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a print job",
	Long: `Submit a print job to a printer.

The cost is debited from the prepaid balance at admission. If the platform
cannot complete the job it is cancelled and the debit is refunded.

Priority runs 1 (urgent, short timeout fuse) to 10 (background, long fuse).

Example:
  printctl submit --printer 4f2c... --cost 1.50
  printctl submit --printer 4f2c... --cost 0.20 --priority 9 --max-retries 5`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		printer, _ := flags.GetString("printer")
		cost, _ := flags.GetString("cost")
		priority, _ := flags.GetInt("priority")
		maxRetries, _ := flags.GetInt("max-retries")

		if printer == "" {
			cmd.Println("Error: --printer is required")
			return
		}
		if cost == "" {
			cmd.Println("Error: --cost is required")
			return
		}

		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		result, err := client.SubmitJob(api.SubmitJobRequest{
			PrinterID:  printer,
			Cost:       cost,
			Priority:   priority,
			MaxRetries: maxRetries,
		})
		if err != nil {
			cmd.Printf("Failed to submit job: %v\n", err)
			return
		}

		cmd.Printf("Job admitted: %s (%s)\n", result.JobID, result.Status)
	},
}

func init() {
	submitCmd.Flags().String("printer", "", "Target printer id")
	submitCmd.Flags().String("cost", "", "Job cost, e.g. 1.50")
	submitCmd.Flags().Int("priority", 0, "Job priority 1-10 (default policy applies when 0)")
	submitCmd.Flags().Int("max-retries", 0, "Retry budget (platform default when 0)")

	rootCmd.AddCommand(submitCmd)
}
