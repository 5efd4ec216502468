// Package main is the qutt command line client: sign in, browse shops,
// fill a cart and place orders against the qutt backend.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thequtt/qutt-client/pkg/config"
	"github.com/thequtt/qutt-client/pkg/logger"
)

const (
	Version = "0.1.0"
	appName = "qutt"

	closeTimeout = 10 * time.Second
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	bootLog := logger.New(logger.Options{ServiceName: appName})
	if err := godotenv.Load(); err != nil {
		bootLog.Debug(context.Background(), "no .env file loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, &cli{
		out:        os.Stdout,
		logOutput:  os.Stderr,
		loadConfig: config.Load,
	}, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries what every subcommand shares. The app is opened lazily so
// commands like version never touch storage or the network.
type cli struct {
	out        io.Writer
	logOutput  io.Writer
	loadConfig func() (*config.Config, error)
	jsonOutput bool

	app *app
}

func (c *cli) open(ctx context.Context) (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: appName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      c.logOutput,
	})
	a, err := newApp(ctx, cfg, logg)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := c.app.Close(ctx)
	c.app = nil
	return err
}

// execute runs one command line and always releases the opened app.
func execute(ctx context.Context, c *cli, args []string) (err error) {
	defer func() {
		if closeErr := c.close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing client: %w", closeErr)
		}
	}()
	root := rootCmd(c)
	root.SetArgs(args)
	root.SetOut(c.out)
	return root.ExecuteContext(ctx)
}

func rootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Command line client for the qutt marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "Print results as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	cmd.AddCommand(authCommands(c)...)
	cmd.AddCommand(catalogCommands(c)...)
	cmd.AddCommand(cartCmd(c))
	cmd.AddCommand(orderCommands(c)...)
	return cmd
}
