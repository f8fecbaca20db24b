package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// apiKeyCommands manages tenant API keys from the command line. The
// create subcommand is the bootstrap path: when secure mode is on, the
// HTTP API itself requires a key, so the first one is minted here.
func apiKeyCommands(b *tesouroInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikeys",
		Short: "manage tenant API keys",
	}

	cmd.AddCommand(apiKeyCreateCommands(b))

	return cmd
}

func apiKeyCreateCommands(b *tesouroInstance) *cobra.Command {
	var name string
	var tenantID string
	var scopes string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "create",
		Short: "create an API key for a tenant",
		Run: func(cmd *cobra.Command, args []string) {
			if name == "" || tenantID == "" {
				log.Fatal("both --name and --tenant are required")
			}

			var scopeList []string
			for _, scope := range strings.Split(scopes, ",") {
				if trimmed := strings.TrimSpace(scope); trimmed != "" {
					scopeList = append(scopeList, trimmed)
				}
			}

			key, err := b.tesouro.CreateAPIKey(cmd.Context(), name, tenantID, scopeList, time.Now().Add(ttl))
			if err != nil {
				log.Fatalf("Error creating API key: %v", err)
			}

			// The key value is only shown here, store it now.
			fmt.Printf("API key created\n  id:      %s\n  key:     %s\n  tenant:  %s\n  scopes:  %s\n  expires: %s\n",
				key.APIKeyID, key.Key, key.TenantID, strings.Join(key.Scopes, ","), key.ExpiresAt.Format(time.RFC3339))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name for the key")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant the key belongs to")
	cmd.Flags().StringVar(&scopes, "scopes", "*:*", "comma-separated resource:action scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", 365*24*time.Hour, "how long the key stays valid")

	return cmd
}
