package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/security"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a random secret",
	Long: `Generate a cryptographically secure random secret suitable for the
webhook_secret and api_token configuration fields.`,
	RunE: runSecret,
}

func runSecret(cmd *cobra.Command, args []string) error {
	secret, err := security.GenerateSecret()
	if err != nil {
		return err
	}
	fmt.Println(secret)
	return nil
}
