package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"shelf-scan/api/internal/app"
	"shelf-scan/api/internal/httpserver"
)

func serveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the Telegram bot when configured)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)

	a, err := app.New(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer a.Close()

	bot, poller, err := a.Telegram()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if bot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx, bot.HandleUpdate)
		}()
	}

	err = httpserver.Run(ctx, "0.0.0.0:"+c.cfg.Port, a.Router(), c.log)
	// HTTP упал или получили сигнал: гасим и бота
	cancel()
	wg.Wait()
	return err
}
