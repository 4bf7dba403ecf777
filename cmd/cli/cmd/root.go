package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "printctl",
	Short: "Printctl is a command line tool for interacting with the printsmart platform",
	Long: `printctl is the command-line interface for the PrintSmart prepaid printing platform.

PrintSmart admits print jobs against a prepaid balance, dispatches them to
networked printers, and refunds jobs the system cannot complete. Money moves
only at two points: a debit when a job is admitted, and a single refund credit
if the job is cancelled.

Common workflows:

  Create an account (prints the API key once):
    printctl create-account --name "design-team"

  Top up the prepaid balance:
    printctl topup --amount 25.00

  Submit a job to a printer:
    printctl submit --printer <printer-id> --cost 1.50 --priority 5

  Check a job:
    printctl status <job-id>
    printctl history <job-id>

  Inspect money movement:
    printctl balance
    printctl refunds

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    PRINTSMART_URL      API endpoint (default: http://localhost:8420)
    PRINTSMART_TOKEN    Account API key for authentication`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".printctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".printctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "PRINTSMART_VARNAME"
	viper.SetEnvPrefix("PRINTSMART")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.printctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:8420", "PrintSmart Controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "Account API key for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
