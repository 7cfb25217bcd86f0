package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Swind/go-display-runner/internal/source"
)

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Show every image in a directory and follow changes",
	Long: `Open one window per image file in DIR, titled with the file name.

When a file is written the window is repainted; when it is removed the window
closes. Decoded images are cached, so rewriting a file with identical content
and timestamp costs nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if info, err := os.Stat(dir); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := source.NewDecodeCache(cfg.Watch.CacheSize)
	if err != nil {
		return err
	}

	env, err := startRuntime(ctx, "watch")
	if err != nil {
		return err
	}
	defer env.shutdown()

	accept := func(path string) bool { return cfg.WatchesExtension(filepath.Ext(path)) }
	show := func(path string) {
		frame, err := cache.Load(path)
		if err != nil {
			// Often a file still being written; its next write event retries
			logger.Debug("image not loaded", "path", path, "error", err)
			return
		}
		name := filepath.Base(path)
		if err := env.windows.show(name, frame); err != nil {
			logger.Debug("image not shown", "window", name, "error", err)
			return
		}
		logger.Debug("image shown",
			"window", name,
			"size", fmt.Sprintf("%dx%d", frame.Width, frame.Height),
			"bytes", humanize.Bytes(uint64(len(frame.Pix))),
		)
	}

	watcher, err := source.NewDirWatcher(dir, accept, func(e source.Event) {
		switch e.Kind {
		case source.FileChanged:
			show(e.Path)
		case source.FileRemoved:
			env.windows.release(filepath.Base(e.Path))
		}
	}, env.log)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	defer watcher.Stop()

	existing, err := source.ScanDir(dir, accept)
	if err != nil {
		return err
	}
	for _, path := range existing {
		show(path)
	}
	logger.Info("watching", "dir", dir, "images", len(existing))

	env.wait(ctx)

	hits, misses := cache.Stats()
	logger.Info("watch finished", "windows", len(env.windows.names()), "cache_hits", hits, "cache_misses", misses)
	return nil
}
