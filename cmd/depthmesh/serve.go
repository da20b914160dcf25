package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/soypat/depthmesh/convert"
	"github.com/soypat/depthmesh/internal/config"
	"github.com/soypat/depthmesh/internal/metrics"
	"github.com/soypat/depthmesh/internal/server"
	"github.com/soypat/depthmesh/internal/watcher"
	"github.com/soypat/depthmesh/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveFlags struct {
	offline bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversions over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.BoolVar(&serveFlags.offline, "offline", false, "analyze images locally instead of calling the analysis service")
	f.String(config.FlagAddr, "", "listen address")
	f.String(config.FlagDSN, "", "sqlite database path")
	f.String(config.FlagAPIKey, "", "analysis service API key")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	an, err := analyzer(serveFlags.offline, 0)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store.DSN, log)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector("depthmesh", reg, log)
	svc := convert.New(st, an, cfg.Assembler.Assembler(), log, m)
	srv := server.New(svc, server.Options{
		Logger:   log,
		Metrics:  m,
		Gatherer: reg,
		Preview:  cfg.Render.PreviewOptions(),
		Workers:  cfg.Server.Workers,
	})
	log.Info("serving conversions", zap.String("addr", cfg.Server.Addr), zap.String("db", cfg.Store.DSN), zap.Bool("offline", serveFlags.offline))
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}

var watchFlags struct {
	output   string
	format   string
	debounce time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch <bundle.json>",
	Short: "Rebuild a model whenever its bundle changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVarP(&watchFlags.output, "output", "o", "", "output model file (required)")
	f.StringVarP(&watchFlags.format, "format", "f", "", "obj, stl, gltf or glb (default: from output extension)")
	f.DurationVar(&watchFlags.debounce, "debounce", watcher.DefaultDebounce, "quiet period before rebuilding")
	watchCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rebuild := func(path string) {
		b, err := loadBundle(path)
		if err == nil {
			_, err = buildBundle(b, "", watchFlags.output, watchFlags.format)
		}
		if err != nil {
			log.Error("rebuild failed", zap.String("path", path), zap.Error(err))
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), watchFlags.output)
	}
	rebuild(args[0])

	fw, err := watcher.New(watchFlags.debounce, log)
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Watch(args, rebuild); err != nil {
		return err
	}
	log.Info("watching for changes", zap.String("bundle", args[0]), zap.String("output", watchFlags.output))
	if err := fw.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "depthmesh %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
