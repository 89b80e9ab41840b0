package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mety-backend/internal/client"
	"mety-backend/internal/config"
	"mety-backend/internal/model"
	"mety-backend/internal/service"
	"mety-backend/pkg/logger"

	"github.com/spf13/cobra"
)

type options struct {
	configPath   string
	mode         string
	baseURL      string
	historyLimit int
	greeting     bool
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "metychat",
		Short: "Chat with Mety, the AI study assistant",
		Long: `metychat reads one message per line from stdin and prints Mety's reply.

Modes:
  remote  talk to a running Mety backend over HTTP (default)
  direct  run the chat service in this process; needs the provider credential
  local   answer from built-in study replies without any network`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "./configs/config.yaml", "config file path")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "backend URL (overrides client.base_url)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "answer mode: remote, direct or local (overrides client.mode)")
	cmd.Flags().IntVar(&opts.historyLimit, "history-limit", -1, "prior turns sent with each message (overrides client.history_limit)")
	cmd.Flags().BoolVar(&opts.greeting, "greeting", true, "start with Mety's greeting")

	cmd.AddCommand(healthCmd(opts), promptsCmd())
	return cmd
}

func healthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(opts)
			if err != nil {
				return err
			}
			backend := client.NewRemoteBackend(cfg.Client.BaseURL, cfg.Client.Timeout)
			if err := backend.Health(cmd.Context()); err != nil {
				return fmt.Errorf("backend %s: %w", cfg.Client.BaseURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK %s\n", cfg.Client.BaseURL)
			return nil
		},
	}
}

func promptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List the quick prompts",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range client.QuickPrompts {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
		},
	}
}

func loadClientConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// Logs go to stderr so replies on stdout stay clean.
	if err := logger.InitWithOutput(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if opts.mode != "" {
		cfg.Client.Mode = opts.mode
	}
	if opts.baseURL != "" {
		cfg.Client.BaseURL = opts.baseURL
	}
	if opts.historyLimit >= 0 {
		cfg.Client.HistoryLimit = opts.historyLimit
	}
	return cfg, nil
}

func newAnswerer(ctx context.Context, cfg *config.Config) (client.Answerer, func(), error) {
	noop := func() {}
	if !strings.EqualFold(strings.TrimSpace(cfg.Client.Mode), client.ModeDirect) {
		a, err := client.NewAnswerer(cfg.Client, nil)
		return a, noop, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, noop, fmt.Errorf("direct mode: %w", err)
	}
	chatModel, err := model.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, noop, fmt.Errorf("direct mode: %w", err)
	}
	cleanup := noop
	if closer, ok := chatModel.(io.Closer); ok {
		cleanup = func() { _ = closer.Close() }
	}

	a, err := client.NewAnswerer(cfg.Client, service.NewChatService(chatModel, cfg.Chat))
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return a, cleanup, nil
}

func runChat(cmd *cobra.Command, opts *options) error {
	cfg, err := loadClientConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	answerer, cleanup, err := newAnswerer(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	convOpts := []client.Option{client.WithHistoryLimit(cfg.Client.HistoryLimit)}
	if opts.greeting {
		convOpts = append(convOpts, client.WithGreeting())
	}
	conv := client.NewConversation(answerer, convOpts...)
	defer conv.Close()

	out := cmd.OutOrStdout()
	for _, turn := range conv.Turns() {
		printTurn(out, turn)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		turn, err := conv.Ask(ctx, scanner.Text())
		switch {
		case errors.Is(err, client.ErrEmptyInput):
			continue
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return err
		}
		printTurn(out, turn)
	}
	return scanner.Err()
}

func printTurn(w io.Writer, turn client.Turn) {
	fmt.Fprintf(w, "[%s] Mety: %s\n", turn.Time(), turn.Text)
}
