package cmd

import (
	"github.com/spf13/cobra"
)

var printersCmd = &cobra.Command{
	Use:   "printers",
	Short: "List registered printers and their last probed status",
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")

		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		printers, err := client.ListPrinters(all)
		if err != nil {
			cmd.Printf("Failed to list printers: %v\n", err)
			return
		}

		if len(printers) == 0 {
			cmd.Println("No printers registered.")
			return
		}

		for _, p := range printers {
			checked := "never"
			if p.LastCheckedAt != nil {
				checked = relativeTime(*p.LastCheckedAt) + " ago"
			}
			cmd.Printf("%s  %-20s %-10s %s  checked %s\n",
				p.ID, p.Name, p.Class, colorizePrinterStatus(p.Status), checked)
		}
	},
}

func colorizePrinterStatus(status string) string {
	switch status {
	case "online":
		return colorGreen + status + colorReset
	case "offline", "error":
		return colorRed + status + colorReset
	default:
		return colorDim + status + colorReset
	}
}

func init() {
	printersCmd.Flags().Bool("all", false, "Include deactivated printers")

	rootCmd.AddCommand(printersCmd)
}
