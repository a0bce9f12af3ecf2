package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verifies that the configured credentials can open a portal session.",
	Run: func(cmd *cobra.Command, args []string) {
		if !client.Login(cmd.Context()) {
			fmt.Fprintln(os.Stderr, "login failed, check the credentials in config.json5")
			os.Exit(1)
		}
		fmt.Println("login ok")
	},
}
