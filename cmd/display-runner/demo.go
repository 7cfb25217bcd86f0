package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Swind/go-display-runner/internal/source"
)

var demoOpts struct {
	cameras int
	frames  int
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Feed synthetic camera frames into several windows",
	Long: `Open one window per simulated camera ("Cam 0", "Cam 1", ...) and feed
each from its own goroutine at the configured frame rate.

The demo ends after --frames frames per camera, on Ctrl-C, or when every
window has been closed.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().IntVarP(&demoOpts.cameras, "cameras", "n", 2,
		"Number of simulated cameras")
	demoCmd.Flags().IntVar(&demoOpts.frames, "frames", 0,
		"Frames per camera before exiting (0 = run until interrupted)")
}

func runDemo(cmd *cobra.Command, args []string) error {
	if demoOpts.cameras <= 0 {
		return fmt.Errorf("--cameras must be positive, got %d", demoOpts.cameras)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := startRuntime(ctx, "demo")
	if err != nil {
		return err
	}
	defer env.shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interval := time.Second / time.Duration(cfg.Demo.FPS)
	var wg sync.WaitGroup
	errs := make(chan error, demoOpts.cameras)

	for i := range demoOpts.cameras {
		wg.Add(1)
		go func(cam int) {
			defer wg.Done()
			if err := feedCamera(ctx, env, cam, interval); err != nil {
				errs <- err
				cancel()
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-env.quit:
		cancel()
		<-done
	case <-ctx.Done():
		<-done
	}
	close(errs)
	return <-errs
}

// feedCamera shows TestPattern frames in "Cam N" until ctx ends, the frame
// budget is spent, or the user closes the window.
func feedCamera(ctx context.Context, env *runtimeEnv, cam int, interval time.Duration) error {
	name := fmt.Sprintf("Cam %d", cam)
	pattern := source.TestPattern{Width: cfg.Demo.Width, Height: cfg.Demo.Height, Camera: cam}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; demoOpts.frames == 0 || n < demoOpts.frames; n++ {
		err := env.windows.show(name, pattern.Frame(n))
		switch {
		case errors.Is(err, errDismissed):
			logger.Info("camera window closed", "window", name, "frames", n)
			return nil
		case err != nil:
			return fmt.Errorf("%s: %w", name, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
