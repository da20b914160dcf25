package main

import (
	"fmt"
	"os"

	"github.com/soypat/depthmesh/internal/config"
	"github.com/soypat/depthmesh/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Set by the linker.
var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	cfgPath string
	cfg     *config.Config
	log     = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "depthmesh",
	Short: "Build 3D models from depth analysis bundles",
	Long: `depthmesh turns the analysis of a photo (shape class, geometry hints,
depth grid and hotspot features) into a mesh and exports it as OBJ, STL,
glTF or GLB. It can also run the analysis itself, render previews and
serve conversions over HTTP.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath, cmd.Flags())
		if err != nil {
			return err
		}
		log = logger.New(cfg.Log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to config file")
	pf.String(config.FlagLogLevel, "", "log level: debug, info, warn, error")
	pf.Bool(config.FlagDebug, false, "enable debug logging")
	pf.Int64(config.FlagSeed, 0, "seed for organic surface noise")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
