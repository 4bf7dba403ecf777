package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"printsmart/pkg/api"
)

var createAccountCmd = &cobra.Command{
	Use:   "create-account",
	Short: "Create a new prepaid account",
	Long: `Create a new prepaid account and print its API key.

The key is shown exactly once; store it somewhere safe. All later commands
authenticate with it via --token or PRINTSMART_TOKEN.

Example:
  printctl create-account --name "design-team"`,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			cmd.Println("Error: --name is required")
			return
		}

		client := NewPrintClient(viper.GetString("url"), "")
		result, err := client.CreateAccount(api.CreateAccountRequest{Name: name})
		if err != nil {
			cmd.Printf("Failed to create account: %v\n", err)
			return
		}

		cmd.Printf("Account created: %s (%s)\n", result.Name, result.ID)
		cmd.Println("API key (shown once, store it now):")
		cmd.Println("  " + result.APIKey)
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the prepaid balance",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		result, err := client.GetBalance()
		if err != nil {
			cmd.Printf("Failed to get balance: %v\n", err)
			return
		}

		cmd.Printf("Balance: %s\n", result.Balance)
	},
}

var topupCmd = &cobra.Command{
	Use:   "topup",
	Short: "Add funds to the prepaid balance",
	Long: `Credit the prepaid balance.

An idempotency key is generated per invocation unless --key is given, so
retrying a failed command with the same key never double-credits.

Example:
  printctl topup --amount 25.00`,
	Run: func(cmd *cobra.Command, args []string) {
		amount, _ := cmd.Flags().GetString("amount")
		key, _ := cmd.Flags().GetString("key")

		if amount == "" {
			cmd.Println("Error: --amount is required")
			return
		}
		if key == "" {
			key = uuid.NewString()
		}

		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		result, err := client.Topup(api.TopupRequest{Amount: amount, IdempotencyKey: key})
		if err != nil {
			cmd.Printf("Failed to top up: %v\n", err)
			return
		}

		cmd.Printf("Balance: %s\n", result.Balance)
	},
}

var refundsCmd = &cobra.Command{
	Use:   "refunds",
	Short: "List refund credits on the account",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		result, err := client.ListRefunds()
		if err != nil {
			cmd.Printf("Failed to list refunds: %v\n", err)
			return
		}

		if len(result.Refunds) == 0 {
			cmd.Println("No refunds.")
			return
		}

		for _, r := range result.Refunds {
			jobID := "-"
			if r.JobID != nil {
				jobID = *r.JobID
			}
			cmd.Printf("%s  %s  job=%s  %s\n",
				r.CreatedAt.Format("2006-01-02 15:04:05"), r.Amount, jobID, r.Reason)
		}
	},
}

// authedClient builds a client from viper config, insisting on a token.
func authedClient(cmd *cobra.Command) (*PrintClient, bool) {
	token := viper.GetString("token")
	if token == "" {
		cmd.Println("API key not found. Please set it using the --token flag or the PRINTSMART_TOKEN environment variable")
		return nil, false
	}
	return NewPrintClient(viper.GetString("url"), token), true
}

func init() {
	createAccountCmd.Flags().String("name", "", "Account name")
	topupCmd.Flags().String("amount", "", "Amount to credit, e.g. 25.00")
	topupCmd.Flags().String("key", "", "Idempotency key (generated when omitted)")

	rootCmd.AddCommand(createAccountCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(topupCmd)
	rootCmd.AddCommand(refundsCmd)
}
