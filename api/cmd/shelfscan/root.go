package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"shelf-scan/api/internal/config"
	"shelf-scan/api/internal/logging"
)

// cli: общее состояние подкоманд: конфиг и логгер поднимаются в PersistentPreRunE.
type cli struct {
	cfgFile string
	cfg     *config.Config
	log     *logrus.Logger
	closer  io.Closer
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "shelfscan",
		Short:         "Retail shelf product detection service",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.closer != nil {
				return c.closer.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "optional config file (yaml, json, env)")

	root.AddCommand(
		serveCmd(c),
		detectCmd(c),
		historyCmd(c),
	)
	return root
}

func (c *cli) init() error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	log, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	c.cfg, c.log, c.closer = cfg, log, closer
	return nil
}
