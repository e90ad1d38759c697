package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ironsheep/ballmeter/internal/ocr"
	"github.com/ironsheep/ballmeter/internal/server"
	"github.com/ironsheep/ballmeter/internal/session"
	"github.com/ironsheep/ballmeter/internal/source"
	"github.com/ironsheep/ballmeter/internal/version"
)

func main() {
	// Handle --version and --help before anything else
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("ballmeter %s\n", version.Version)
			fmt.Printf("  Build time: %s\n", version.BuildTime)
			fmt.Printf("  Git commit: %s\n", version.GitCommit)
			if v := ocr.Version(); v != "" {
				fmt.Printf("  Tesseract:  %s\n", v)
			}
			return
		case "--help", "-h", "help":
			printUsage()
			return
		}
	}

	cmd, args := "run", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runMeasure(args)
	case "mcp":
		err = runMCP(args)
	default:
		fmt.Fprintf(os.Stderr, "ballmeter: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(2)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if errors.Is(err, source.ErrCameraUnavailable) {
		fmt.Fprintf(os.Stderr, "ballmeter: %v\n", err)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("ballmeter failed", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("ballmeter - measure the volume and weight of a ball from a camera image")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ballmeter [run] [flags]    Run the live measurement loop (default)")
	fmt.Println("  ballmeter mcp [flags]      Serve the measurement tools over MCP on stdin/stdout")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Run 'ballmeter run -h' for the list of flags. Frames come from the camera")
	fmt.Println("by default, which needs -tags gocv; use -path or -source mjpeg otherwise.")
	fmt.Println()
	fmt.Println("Operator commands (type on stdin while running):")
	fmt.Println("  c [mm]           Calibrate with the ball in view and its real diameter")
	fmt.Println("  d [g/cm3]        Set the density factor")
	fmt.Println("  card             Calibrate from the printed card in view")
	fmt.Println("  q                Quit")
	fmt.Println("The preview window accepts the keys c, d, k (card) and q or Esc.")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %s=debug    Set the log level (debug, info, warn, error)\n", envLogLevel)
	fmt.Println()
	fmt.Println("Optional features need build tags: -tags gocv (camera, window, OpenCV")
	fmt.Println("detector) and -tags tesseract (calibration card reading).")
}

// runMeasure runs the live measurement loop until the operator quits, the
// source ends or the process is interrupted.
func runMeasure(args []string) error {
	cfg, err := loadConfig("run", args)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Debug("starting", "version", version.Version, "build_time", version.BuildTime, "commit", version.GitCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, os.Stdin, os.Stderr, logger)
	if err != nil {
		return withSourceHint(err)
	}
	defer p.Close()

	err = p.session.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, session.ErrSourceExhausted):
		if p.session.Frames() == 0 {
			return fmt.Errorf("no frames received from %s source: %w", cfg.Source.Kind, err)
		}
		logger.Info("frame source ended", "frames", p.session.Frames())
		return nil
	default:
		return err
	}
}

// withSourceHint explains how to get frames when the camera source is not
// compiled in. Other errors are returned unchanged.
func withSourceHint(err error) error {
	if !errors.Is(err, source.ErrCameraUnavailable) {
		return err
	}
	return fmt.Errorf("%w: the default source is the camera; rebuild with -tags gocv, "+
		"or read frames with -path FILE_OR_DIR or -source mjpeg -url URL", err)
}

// runMCP serves the MCP tools on stdin and stdout. Logs go to stderr.
func runMCP(args []string) error {
	cfg, err := loadConfig("mcp", args)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Debug("Ballmeter MCP server", "version", version.Version, "build_time", version.BuildTime, "commit", version.GitCommit)

	opts, err := serverOptions(cfg, logger)
	if err != nil {
		return err
	}
	srv := server.New(opts)
	if err := srv.Run(os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
