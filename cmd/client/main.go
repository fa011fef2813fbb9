package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dzimika/counter-app-sphere/internal/client"
	"github.com/dzimika/counter-app-sphere/internal/platform/logging"
	"github.com/dzimika/counter-app-sphere/internal/platform/version"
)

type options struct {
	url     string
	origin  string
	timeout time.Duration
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "client",
		Short:        "Talk to a counter-app-sphere server",
		Version:      version.Version,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := "info"
			if opts.verbose {
				level = "debug"
			}
			logging.InitLogger(level, "text")
		},
	}

	root.PersistentFlags().StringVar(&opts.url, "url", envOr("COUNTER_URL", "ws://localhost:3001/"), "server websocket URL (or set COUNTER_URL env)")
	root.PersistentFlags().StringVar(&opts.origin, "origin", "", "Origin header sent on the handshake")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "time to wait for the server to answer")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the current count and radius",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withClient(cmd.Context(), opts, nil, func(ctx context.Context, c *client.Client) error {
					wait := c.Expect(client.EventRadius)
					if err := c.GetRadius(ctx); err != nil {
						return err
					}
					return printAfter(ctx, opts.timeout, wait)
				})
			},
		},
		counterCommand(opts, "inc", "Increment the shared counter", (*client.Client).Increment),
		counterCommand(opts, "dec", "Decrement the shared counter", (*client.Client).Decrement),
		&cobra.Command{
			Use:   "radius <r>",
			Short: fmt.Sprintf("Set the shared radius (%v..%v)", client.MinRadius, client.MaxRadius),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid radius %q: %w", args[0], err)
				}
				if err := client.ValidateRadius(r); err != nil {
					return err
				}
				return withClient(cmd.Context(), opts, nil, func(ctx context.Context, c *client.Client) error {
					if err := c.SetRadius(ctx, r); err != nil {
						return err
					}
					printState(c.State())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Print every state change until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				onChange := func(s client.State, ev client.Event) {
					slog.Debug("State changed", "event", ev.String())
					printState(s)
				}
				return withClient(cmd.Context(), opts, onChange, func(ctx context.Context, c *client.Client) error {
					printState(c.State())
					select {
					case <-ctx.Done():
						return nil
					case <-c.Done():
						return c.Err()
					}
				})
			},
		},
	)

	return root
}

func counterCommand(opts *options, use, short string, call func(*client.Client, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), opts, nil, func(ctx context.Context, c *client.Client) error {
				wait := c.Expect(client.EventCount)
				if err := call(c, ctx); err != nil {
					return err
				}
				return printAfter(ctx, opts.timeout, wait)
			})
		},
	}
}

func withClient(ctx context.Context, opts *options, onChange func(client.State, client.Event), run func(context.Context, *client.Client) error) error {
	dialCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	c, err := client.Dial(dialCtx, client.Config{URL: opts.url, Origin: opts.origin, OnChange: onChange})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = c.Close() }()

	return run(ctx, c)
}

func printAfter(ctx context.Context, timeout time.Duration, wait func(context.Context) (client.State, error)) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s, err := wait(waitCtx)
	if err != nil {
		return fmt.Errorf("no answer from server: %w", err)
	}
	printState(s)
	return nil
}

func printState(s client.State) {
	out, _ := json.Marshal(s)
	fmt.Println(string(out))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
