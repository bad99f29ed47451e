package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/security"
	"github.com/Scrappy-Poet-LLC/shipyard/pkg/fileutil"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a starter shipyard.yaml to the current directory with freshly
generated secrets. Fill in your GitHub App ID and private key path before
starting the server.`,
	RunE: runInit,
}

const configTemplate = `# Shipyard configuration
github:
  app_id: 0                      # your GitHub App ID
  private_key_file: ./app.pem    # path to the App's private key PEM
  webhook_secret: %s
  # base_url: https://ghe.example.com/api/v3/   # GitHub Enterprise only

server:
  host: 127.0.0.1
  port: 5000
  api_token: %s

database: ./shipyard.db

environments:
  - name: Production
    slug: production
    commit_ceiling: 30
  - name: Staging
    slug: staging
    commit_ceiling: 30
  - name: Sandbox
    slug: sandbox
    commit_ceiling: 30
`

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing shipyard.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	const path = "shipyard.yaml"

	if fileutil.FileExists(path) && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	webhookSecret, err := security.GenerateSecret()
	if err != nil {
		return err
	}
	apiToken, err := security.GenerateSecret()
	if err != nil {
		return err
	}

	contents := fmt.Sprintf(configTemplate, webhookSecret, apiToken)
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("Wrote %s with generated secrets\n", path)
	fmt.Println("Set github.app_id and github.private_key_file before running 'shipyard serve'")
	return nil
}
