////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

var cfgFile string
var verbose bool
var validConfig bool
var showVer bool

// How long shutdown waits for in-flight work
const shutdownTimeout = 10 * time.Second

// rootCmd represents the base command when called without any sub-commands
var rootCmd = &cobra.Command{
	Use:   "plume",
	Short: "Runs a confidential plume observation ledger node",
	Long: `The plume node stores encrypted volcanic plume observations, sums
them per group without decrypting them, and reveals derived climate and
aviation scores once a threshold oracle has decrypted and proven them.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if showVer {
			printVersion()
			return
		}
		if !validConfig {
			jww.FATAL.Panicf("No usable config file at %s", cfgFile)
		}

		node, err := StartServer(viper.GetViper())
		if err != nil {
			jww.FATAL.Panicf("Failed to start node: %+v", err)
		}

		// Block until told to exit
		sig := <-ReceiveExitSignal()
		jww.INFO.Printf("Received %s, shutting down", sig)
		if err = node.Stop(shutdownTimeout); err != nil {
			jww.ERROR.Printf("Unclean shutdown: %+v", err)
		}
	},
}

// Execute runs the root command. Called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		jww.ERROR.Printf("plume exited with error: %+v", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLog)

	rootCmd.Flags().StringVarP(&cfgFile, "config", "", "",
		"config file (default is $HOME/.plume/node.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Verbose mode for debugging")
	rootCmd.Flags().BoolVarP(&showVer, "version", "V", false,
		"Show the node version information.")
	rootCmd.Flags().Bool("devMode", false,
		"Allows an in-memory ledger when no database is configured")

	err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	handleBindingError(err, "verbose")

	err = viper.BindPFlag("devMode", rootCmd.Flags().Lookup("devMode"))
	handleBindingError(err, "devMode")
}

func handleBindingError(err error, flag string) {
	if err != nil {
		jww.FATAL.Panicf("Error on binding flag \"%s\":%+v", flag, err)
	}
}

// initConfig points viper at the config file and lets PLUME_* environment
// variables override any key, with dots written as underscores.
func initConfig() {
	if cfgFile == "" {
		home, err := homedir.Dir()
		if err != nil {
			jww.ERROR.Printf("Could not find home directory: %+v", err)
			os.Exit(1)
		}
		cfgFile = filepath.Join(home, ".plume", "node.yaml")
	}

	viper.SetEnvPrefix("plume")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if _, err := os.Stat(cfgFile); err != nil {
		jww.ERROR.Printf("Invalid config file (%s): %s", cfgFile, err)
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		jww.ERROR.Printf("Unable to read config file (%s): %s", cfgFile, err)
		return
	}
	validConfig = true
}

// initLog sets thresholds from the verbose flag and appends the log to
// node.paths.log when it is set
func initLog() {
	threshold := jww.LevelInfo
	if viper.GetBool("verbose") {
		threshold = jww.LevelDebug
	}
	jww.SetLogThreshold(threshold)
	jww.SetStdoutThreshold(threshold)

	logPath := viper.GetString("node.paths.log")
	if logPath == "" {
		return
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		fmt.Printf("Could not open log file %s, logging to stdout only: %s\n",
			logPath, err)
		return
	}
	jww.SetLogOutput(logFile)
}
