/*
Copyright 2024 Bancore Authors.

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

	"github.com/bancore/bancore"
	"github.com/bancore/bancore/config"
	"github.com/bancore/bancore/database"
	"github.com/bancore/bancore/internal/notification"
)

// Bancore represents the CLI application, encapsulating the root Cobra command.
type Bancore struct {
	cmd *cobra.Command
}

// bancoreInstance holds the service instance and its configuration, shared
// by the subcommands.
type bancoreInstance struct {
	bancore *bancore.Bancore
	cnf     *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads configuration and initializes the service before any
// subcommand executes.
func preRun(app *bancoreInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("bancore.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newBancore, err := setupBancore(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.bancore = newBancore
		app.cnf = cnf

		return nil
	}
}

func setupBancore(cfg *config.Configuration) (*bancore.Bancore, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newBancore, err := bancore.NewBancore(db)
	if err != nil {
		return nil, fmt.Errorf("error creating bancore: %v", err)
	}
	return newBancore, nil
}

// NewCLI creates the command-line interface for the Bancore server.
func NewCLI() *Bancore {
	var configFile string
	b := &bancoreInstance{}

	var rootCmd = &cobra.Command{
		Use:   "bancore",
		Short: "Banking ledger core",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./bancore.json", "Configuration file for the ledger server")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))

	return &Bancore{cmd: rootCmd}
}

func (w Bancore) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
