package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/vendahub/tesouro/config"
)

const redactedValue = "[REDACTED]"

// maskSecrets blanks every credential field so the printed config is
// safe to paste into a ticket. Connection DSNs stay visible, operators
// need them to check where an instance is pointed.
func maskSecrets(cfg config.Configuration) config.Configuration {
	if cfg.Server.SecretKey != "" {
		cfg.Server.SecretKey = redactedValue
	}
	if cfg.Settlement.Secret != "" {
		cfg.Settlement.Secret = redactedValue
	}
	if cfg.AwsSecretAccessKey != "" {
		cfg.AwsSecretAccessKey = redactedValue
	}
	if cfg.TypeSenseKey != "" {
		cfg.TypeSenseKey = redactedValue
	}
	return cfg
}

func configCommands() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "config outputs your instances computed configuration",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Fetch()
			if err != nil {
				log.Fatalf("Error getting config: %v\n", err)
			}

			printable := *cfg
			if !reveal {
				printable = maskSecrets(printable)
			}

			data, err := json.MarshalIndent(printable, "", "    ")
			if err != nil {
				log.Fatalf("Error printing config: %v\n", err)
			}

			fmt.Println(string(data))
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secret values instead of masking them")
	return cmd
}
