/*
 * main.go, part of gomm.
 *
 * Copyright 2024 The gomm authors.
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//mmrun runs the simulation described by an HCL file.
//
//	mmrun run [--seed N] [--log-level debug] [--log-format console] [--metrics-out m.prom] sim.hcl
//
//Every flag can also be given as an environment variable with the GOMM_ prefix,
//for instance GOMM_LOG_LEVEL=debug.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rmera/gomm/hclconf"
	"github.com/rmera/gomm/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "GOMM"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmrun:", err)
		os.Exit(1)
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func newRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "mmrun",
		Short:         "Molecular mechanics simulations from HCL files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.AddCommand(newRunCommand(newViper()))
	return root
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file.hcl>",
		Short: "Run the protocol of an HCL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, args[0])
		},
	}
	fl := cmd.Flags()
	fl.Uint64("seed", 0, "random seed, overrides the one in the file")
	fl.String("log-level", "info", "log level (debug, info, warn, error)")
	fl.String("log-format", "json", "log format (json, console)")
	fl.String("metrics-out", "", "write the final metrics to this file in the prometheus text format")
	if err := v.BindPFlags(fl); err != nil {
		panic(err)
	}
	return cmd
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func run(ctx context.Context, v *viper.Viper, path string) error {
	log, err := newLogger(v.GetString("log-level"), v.GetString("log-format"))
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	f, err := hclconf.Load(path)
	if err != nil {
		return err
	}
	opts := hclconf.BuildOptions{Log: log}
	if v.IsSet("seed") {
		seed := v.GetUint64("seed")
		opts.Seed = &seed
	}
	reg := prometheus.NewRegistry()
	if opts.Metrics, err = metrics.New(reg); err != nil {
		return err
	}
	R, err := hclconf.Build(f, opts)
	if err != nil {
		return err
	}
	if err := R.Execute(ctx); err != nil {
		return err
	}
	if out := v.GetString("metrics-out"); out != "" {
		if err := prometheus.WriteToTextfile(out, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}
