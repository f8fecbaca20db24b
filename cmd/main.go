/*
Copyright 2025 Vendahub Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vendahub/tesouro"
	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/database"
	"github.com/vendahub/tesouro/internal/notification"
)

// Tesouro represents the CLI application, encapsulating the root Cobra command.
type Tesouro struct {
	cmd *cobra.Command
}

// tesouroInstance holds the engine instance and its configuration so
// subcommands share one initialized treasury.
type tesouroInstance struct {
	tesouro *tesouro.Tesouro
	cnf     *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration file and initializes the engine before
// any subcommand executes.
func preRun(app *tesouroInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newTesouro, err := setupTesouro(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.tesouro = newTesouro
		app.cnf = cnf

		return nil
	}
}

// setupTesouro connects the data source from the configuration and
// builds the engine on top of it.
func setupTesouro(cfg *config.Configuration) (*tesouro.Tesouro, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newTesouro, err := tesouro.NewTesouro(db)
	if err != nil {
		return nil, fmt.Errorf("error creating tesouro: %v", err)
	}
	return newTesouro, nil
}

// NewCLI assembles the command-line interface: the root command plus
// the server, worker, migration, backup and operator subcommands.
func NewCLI() *Tesouro {
	var configFile string
	b := &tesouroInstance{}

	var rootCmd = &cobra.Command{
		Use:   "tesouro",
		Short: "Merchant treasury: withdrawals, settlement and ledger",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "tesouro.json", "Configuration file for tesouro")

	rootCmd.PersistentPreRunE = preRun(b, &configFile)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))
	rootCmd.AddCommand(backupCommands(b))
	rootCmd.AddCommand(apiKeyCommands(b))
	rootCmd.AddCommand(configCommands())

	return &Tesouro{cmd: rootCmd}
}

// executeCLI runs the root command, reporting any execution error on
// stderr before exiting.
func (w Tesouro) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// main recovers from panics, builds the CLI and executes it.
func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
