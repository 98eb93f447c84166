package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/breeze-rmm/spinningmomo-core/internal/config"
	"github.com/breeze-rmm/spinningmomo-core/internal/facade"
	"github.com/breeze-rmm/spinningmomo-core/internal/logging"
)

var (
	version = "0.1.0"
	cfgFile string
	target  string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "spinningmomo-core",
	Short: "SpinningMomo capture/compose/persist core",
	Long:  `spinningmomo-core drives window targeting, capture, recording, instant replay, and screenshots for a single target window. It is normally driven by the RPC/UI layer; these subcommands exist for manual smoke-testing.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("spinningmomo-core v%s\n", version)
	},
}

var capsCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Report what this host's capture stack supports",
	Run: func(cmd *cobra.Command, args []string) {
		f := mustFacade()
		c := f.Capabilities()
		fmt.Printf("capture_supported: %v\ncursor_capture_controllable: %v\nborder_controllable: %v\n",
			c.CaptureSupported, c.CursorCaptureControllable, c.BorderControllable)
	},
}

var applyRatioCmd = &cobra.Command{
	Use:   "apply-ratio [name]",
	Short: "Reshape the target window to a preset aspect ratio at its current pixel count",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f := mustFacade()
		if err := f.ApplyRatio(args[0]); err != nil {
			fail("apply-ratio", err)
		}
	},
}

var applyResolutionCmd = &cobra.Command{
	Use:   "apply-resolution [tier]",
	Short: "Reshape the target window to a resolution tier at its current aspect ratio",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f := mustFacade()
		if err := f.ApplyResolution(args[0]); err != nil {
			fail("apply-resolution", err)
		}
	},
}

var resetWindowCmd = &cobra.Command{
	Use:   "reset-window",
	Short: "Restore the target window to a size fitting the primary monitor",
	Run: func(cmd *cobra.Command, args []string) {
		f := mustFacade()
		if err := f.ResetWindow(); err != nil {
			fail("reset-window", err)
		}
	},
}

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Take a single screenshot of the target window",
	Run: func(cmd *cobra.Command, args []string) {
		f := mustFacade()
		result, err := f.TakeScreenshot()
		if err != nil {
			fail("screenshot", err)
		}
		fmt.Printf("wrote %s (%dx%d)\n", result.Path, result.Width, result.Height)
	},
}

var recordCmd = &cobra.Command{
	Use:   "record [seconds]",
	Short: "Record the target window for the given number of seconds",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var seconds int
		if _, err := fmt.Sscanf(args[0], "%d", &seconds); err != nil || seconds <= 0 {
			fmt.Fprintln(os.Stderr, "seconds must be a positive integer")
			os.Exit(1)
		}
		f := mustFacade()
		if err := f.StartRecording(); err != nil {
			fail("start-recording", err)
		}
		time.Sleep(time.Duration(seconds) * time.Second)
		result, err := f.StopRecording()
		if err != nil {
			fail("stop-recording", err)
		}
		fmt.Printf("wrote %s (%d frames, %dms)\n", result.Path, result.Frames, result.DurationMs)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the preview + replay buffer against the target window until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a spinningmomo.yaml populated with the built-in defaults",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "spinningmomo.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.Save(config.Default(), path); err != nil {
			fail("init-config", err)
		}
		fmt.Printf("wrote %s\n", path)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default spinningmomo.yaml in the working directory, then next to the executable)")
	rootCmd.PersistentFlags().StringVar(&target, "target", "", "target window title (overrides config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(capsCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(applyRatioCmd)
	rootCmd.AddCommand(applyResolutionCmd)
	rootCmd.AddCommand(resetWindowCmd)
	rootCmd.AddCommand(screenshotCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadSettings() *config.Settings {
	settings, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if target != "" {
		settings.TargetWindowTitle = target
	}

	var output io.Writer = os.Stdout
	if settings.LogFile != "" {
		rw, err := logging.NewRotatingWriter(settings.LogFile, settings.LogMaxSizeMB, settings.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", settings.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(settings.LogFormat, settings.LogLevel, output)
	log = logging.L("main")
	return settings
}

func mustFacade() *facade.Facade {
	settings := loadSettings()
	f, err := facade.New(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind target window %q: %v\n", settings.TargetWindowTitle, err)
		os.Exit(1)
	}
	return f
}

func fail(op string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", op, err)
	os.Exit(1)
}

// runServe starts the preview and replay buffer concurrently (each opens
// its own path into the capture fanout) and blocks until a signal arrives,
// for manually exercising the long-running consumers without the
// out-of-scope RPC/UI layer.
func runServe() {
	f := mustFacade()

	var g errgroup.Group
	g.Go(f.StartPreview)
	g.Go(func() error { return f.ToggleReplayBuffer(true) })
	if err := g.Wait(); err != nil {
		log.Error("serve startup failed", "error", err)
	}

	log.Info("serving", "target", target)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	_ = f.ToggleReplayBuffer(false)
	_ = f.StopPreview()
}
