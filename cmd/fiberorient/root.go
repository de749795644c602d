package main

import (
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"fiberorient/pkg/config"
)

var profiler interface{ Stop() }

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fiberorient",
	Short: "Fiber orientation from tomography scans for FE models",
	Long: `fiberorient extracts the local fiber orientation of a composite sample
from a tomography volume with structure tensor analysis, removes the global
misalignment and maps the resulting angles onto the integration points of a
finite element model.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !viper.GetBool("profile") {
			return nil
		}
		dir, err := homedir.Expand(viper.GetString("profile-dir"))
		if err != nil {
			return err
		}
		profiler = profile.Start(profile.CPUProfile, profile.ProfilePath(dir), profile.NoShutdownHook)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViper)

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "fiberorient.yaml", "YAML configuration file")
	pf.BoolP("verbose", "v", true, "print progress messages")
	pf.Bool("profile", false, "write a CPU profile")
	pf.String("profile-dir", ".", "directory receiving the CPU profile")
	bindFlags(pf)
}

// initViper lets FIBERORIENT_* environment variables stand in for flags.
func initViper() {
	viper.SetEnvPrefix("FIBERORIENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func bindFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil {
			panic(err)
		}
	})
}

// loadConfig reads the configuration file and applies the flag and
// environment overrides that were set explicitly.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	if viper.IsSet("verbose") {
		cfg.Output.Verbose = viper.GetBool("verbose")
	}
	if viper.IsSet("sample") {
		cfg.Sample = viper.GetString("sample")
	}
	if viper.IsSet("data-path") {
		cfg.DataPath = viper.GetString("data-path")
	}
	if viper.IsSet("result-path") {
		cfg.ResultPath = viper.GetString("result-path")
	}
	if viper.IsSet("crop-margin") {
		cfg.Scan.CropMargin = viper.GetInt("crop-margin")
	}
	if viper.IsSet("voxel-size") {
		cfg.Scan.VoxelSizeOverride = viper.GetFloat64("voxel-size")
	}
	if viper.IsSet("fiber-diameter") {
		cfg.Analysis.FiberDiameter = viper.GetFloat64("fiber-diameter")
	}
	if viper.IsSet("workers") {
		cfg.Analysis.Workers = viper.GetInt("workers")
	}
	if viper.IsSet("save-intermediary") {
		cfg.Output.SaveIntermediaryResults = viper.GetBool("save-intermediary")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
