package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "rdfsolve",
	Short:   "Mine SPARQL endpoint schemas into JSON-LD and VoID",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML/JSON/env config file")
	rootCmd.AddCommand(mineCmd)
}

// loadConfig binds viper to cfgFile (when set) and the RDFSOLVE_ env
// prefix, so mine flags can also be supplied via config file or
// environment variable. Flags explicitly set on the command line win.
// --sources is a required flag, so cobra rejects a run that omits it on
// the command line before this function is reached.
func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("rdfsolve")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}
