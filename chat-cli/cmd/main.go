package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Hajira-org/hajira-chat/chat-cli/internal/config"
	"github.com/Hajira-org/hajira-chat/chat-cli/internal/console"
	"github.com/Hajira-org/hajira-chat/pkg/chat/completion"
	"github.com/Hajira-org/hajira-chat/pkg/chat/relay"
	"github.com/Hajira-org/hajira-chat/pkg/chat/session"
	"github.com/Hajira-org/hajira-chat/pkg/chat/widget"
	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/spf13/cobra"
)

var (
	sender     string
	receiver   string
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "hajira-chat",
		Short:        "Terminal chat with typing suggestions and an AI assistant",
		SilenceUsage: true,
		RunE:         runChat,
	}

	rootCmd.Flags().StringVarP(&sender, "sender", "s", "", "your user id (required)")
	rootCmd.Flags().StringVarP(&receiver, "receiver", "r", "", "the user id to chat with (required)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config directory or yaml file")
	rootCmd.MarkFlagRequired("sender")
	rootCmd.MarkFlagRequired("receiver")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Logs go to stderr so they do not interleave with the conversation.
	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "chat-cli", Output: os.Stderr})
	logger := pkglog.L()

	completer, err := completion.NewClient(cfg.Completion)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialer := widget.DialerFunc(func(ctx context.Context) (session.Relay, error) {
		dialCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
		defer cancel()
		conn, err := relay.Dial(dialCtx, cfg.Relay, logger)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})

	out := cmd.OutOrStdout()
	renderer := console.NewRenderer(out)

	var w *widget.Widget
	w = widget.New(dialer, completer, cfg.Widget,
		widget.WithLogger(logger),
		widget.WithOnChange(func() { renderer.Render(w.Snapshot()) }),
	)

	if err := w.Open(ctx, sender, receiver); err != nil {
		return err
	}
	renderer.Render(w.Snapshot())

	return console.New(w, out).Run(ctx, cmd.InOrStdin())
}
