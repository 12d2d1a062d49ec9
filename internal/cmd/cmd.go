/*
Copyright © 2024 the swdircor authors.
This file is part of swdircor.

swdircor is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

swdircor is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with swdircor.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cmd contains commands and subcommands for the swdircor
// command-line interface.
package cmd

import (
	"fmt"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	configFile string

	// Config holds the global configuration data, populated by Startup.
	Config *ConfigData

	// env layers environment-variable overrides (prefixed SWDIRCOR_) on
	// top of the engine choice and a handful of frequently-tuned numeric
	// settings, the way the
	// source model's declarative flag table binds cobra flags through
	// viper. Most configuration still comes from the TOML file; env lets
	// a batch scheduler override a threshold without editing it.
	env = viper.New()

	log = logrus.StandardLogger()
)

// RootCmd is the main command.
var RootCmd = &cobra.Command{
	Use:   "swdircor",
	Short: "Ray-traced shortwave direct-radiation terrain correction.",
	Long: `swdircor computes terrain-shadowing correction factors for
shortwave direct solar radiation by ray tracing against a triangulated
digital elevation model.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return labelErr(Startup(configFile))
	},
}

// Startup reads the configuration file, applies any environment-variable
// overrides, and prints a welcome message.
func Startup(configFile string) error {
	var err error
	Config, err = ReadConfigFile(configFile)
	if err != nil {
		return err
	}
	applyEnvOverrides(Config)
	if err := Config.Validate(); err != nil {
		return err
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.Infof("swdircor v%s starting up", version)
	log.Infof("outer DEM %s (%dx%d), inner DEM %s (%dx%d)",
		Config.OuterDEMFile, Config.OuterRows, Config.OuterCols,
		Config.InnerDEMFile, Config.InnerRows, Config.InnerCols)
	return nil
}

// applyEnvOverrides lets SWDIRCOR_* environment variables override the
// engine choice and a handful of frequently-tuned thresholds without
// editing the TOML file.
func applyEnvOverrides(c *ConfigData) {
	env.SetEnvPrefix("SWDIRCOR")
	env.AutomaticEnv()
	if v := env.GetString("engine"); v != "" {
		c.Engine = v
	}
	if v := env.GetFloat64("sw_dir_cor_max"); v != 0 {
		c.SwDirCorMax = v
	}
	if v := env.GetFloat64("ang_max_deg"); v != 0 {
		c.AngMaxDeg = v
	}
	if v := env.GetFloat64("dist_search_km"); v != 0 {
		c.DistSearchKM = v
	}
}

func labelErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("swdircor: %v", err)
}

func init() {
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(validateCmd)

	RootCmd.PersistentFlags().StringVar(&configFile, "config", "./swdircor.toml", "configuration file location")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this build of swdircor.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("swdircor v%s\n", version)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

// validateCmd checks a configuration and its referenced DEM/mask files
// for the dimensional and range invariants C8/§6 require, without
// running any ray tracing. It is the supplemented operation that catches
// a misconfigured offset_gc/pixel_per_gc pair before a long batch run.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration and its DEM files without running.",
	Long: "validate loads the configuration and DEM/mask files named in it, checks " +
		"every precondition (dimension agreement, threshold ranges, odd " +
		"pixel_per_gc with the packet8 engine), and reports the resulting scene size.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return labelErr(runValidate(Config))
	},
}
