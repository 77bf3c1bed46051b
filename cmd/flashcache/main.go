/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Thu Dec 14 19:10:02 2017 mstenber
 * Last modified: Mon Oct 19 22:18:37 2026 mstenber
 * Edit time:     143 min
 *
 */

package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fingon/go-flashcache/device"
	"github.com/fingon/go-flashcache/flash/factory"
	"github.com/fingon/go-flashcache/mlog"
)

type options struct {
	configPath string
	config     device.Configuration
	cpuprofile string
}

var opts = options{config: device.DefaultConfiguration()}

var stopProfile func()

// overrideConfiguration returns config with the values of the
// changed flags taken from cmdline.
func overrideConfiguration(config, cmdline device.Configuration, changed func(name string) bool) device.Configuration {
	override := func(name string, apply func()) {
		if changed(name) {
			apply()
		}
	}
	override("caches", func() { config.Caches = cmdline.Caches })
	override("chunk-size", func() { config.ChunkSize = cmdline.ChunkSize })
	override("backend", func() { config.Backend = cmdline.Backend })
	override("dir", func() { config.Directory = cmdline.Directory })
	override("password", func() { config.Password = cmdline.Password })
	override("salt", func() { config.Salt = cmdline.Salt })
	override("iterations", func() { config.Iterations = cmdline.Iterations })
	override("no-sync", func() { config.NoSync = cmdline.NoSync })
	return config
}

// configure combines the configuration file (if any) with flags
// given explicitly.
func configure(c *cobra.Command, args []string) error {
	if opts.configPath != "" {
		config, err := device.LoadConfiguration(opts.configPath)
		if err != nil {
			return err
		}
		opts.config = overrideConfiguration(config, opts.config, c.Flags().Changed)
	}
	if opts.cpuprofile != "" {
		f, err := os.Create(opts.cpuprofile)
		if err != nil {
			return errors.Wrap(err, "cpuprofile")
		}
		if err = pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
		stopProfile = func() {
			pprof.StopCPUProfile()
			f.Close()
		}
	}
	return opts.config.Validate()
}

// withDevice runs f with the configured device open.
func withDevice(f func(d *device.Device, args []string) error) func(*cobra.Command, []string) error {
	return func(c *cobra.Command, args []string) (err error) {
		d, err := device.Open(opts.config)
		if err != nil {
			return err
		}
		defer func() {
			if err2 := d.Close(); err == nil {
				err = err2
			}
		}()
		return f(d, args)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "flashcache",
		Short:             "Object store on flash, with short operation chunk cache",
		SilenceUsage:      true,
		PersistentPreRunE: configure,
		PersistentPostRun: func(c *cobra.Command, args []string) {
			if stopProfile != nil {
				stopProfile()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Device configuration file (JSON, comments allowed)")
	pf.IntVar(&opts.config.Caches, "caches", opts.config.Caches, "Number of short operation cache slots")
	pf.IntVar(&opts.config.ChunkSize, "chunk-size", opts.config.ChunkSize, "Chunk size in bytes")
	pf.StringVar(&opts.config.Backend, "backend", opts.config.Backend,
		fmt.Sprintf("Backend to use (possible: %v)", factory.List()))
	pf.StringVarP(&opts.config.Directory, "dir", "d", "", "Storage directory")
	pf.StringVar(&opts.config.Password, "password", "", "Password (enables encryption)")
	pf.StringVar(&opts.config.Salt, "salt", "", "Salt")
	pf.IntVar(&opts.config.Iterations, "iterations", 0, "Key derivation iterations (0 = default)")
	pf.BoolVar(&opts.config.NoSync, "no-sync", false, "Sync the backend only on flush")
	pf.StringVar(&opts.cpuprofile, "cpuprofile", "", "CPU profile file")
	pf.AddGoFlagSet(mlog.FlagSet)

	root.AddCommand(writeCommand(), readCommand(), lsCommand(), rmCommand(),
		benchCommand())
	return root
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		log.WithError(err).Error("flashcache failed")
		os.Exit(1)
	}
}
