package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// version is replaced at link time on release builds.
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string
	var debug bool

	root := &cobra.Command{
		Use:           "wasmcheck",
		Short:         "wasmcheck validates WebAssembly binary modules",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a yaml config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log with the zap development logger")

	root.AddCommand(newValidateCommand(&configFile, &debug))
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wasmcheck version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "wasmcheck", version)
			return nil
		},
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// applyConfig overrides flag defaults from the yaml config file, when given,
// and WASMCHECK_* environment variables, which win over the file. A flag set
// on the command line keeps its value.
func applyConfig(flags *pflag.FlagSet, configFile string) error {
	k := koanf.New(".")
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return fmt.Errorf("load config %s: %w", configFile, err)
		}
	}
	if err := k.Load(env.Provider("WASMCHECK_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "WASMCHECK_")), "_", "-")
	}), nil); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || !k.Exists(f.Name) {
			return
		}
		if e := flags.Set(f.Name, k.String(f.Name)); e != nil {
			err = fmt.Errorf("config %s: %w", f.Name, e)
		}
	})
	return err
}
