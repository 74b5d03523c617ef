package main

import (
	"github.com/spf13/cobra"

	"navguard/internal/config"
	"navguard/internal/logger"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

// load 读取配置，--log-level 优先于配置文件
func (o *rootOptions) load() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, logger.New(cfg.LoggerOptions()), nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "navguard",
		Short: "Navigation and message policy guard for embedded browser views.",
		Long: `navguard decides whether navigations and page messages of an embedded
browser view are trusted. It can evaluate policies offline or guard a live
Chromium target over the DevTools protocol.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml)")
	root.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "", "Set log level. Available: debug, info, warn, error")

	root.AddCommand(
		newCheckCmd(opts),
		newGateCmd(opts),
		newAttachCmd(opts),
		newJournalCmd(opts),
	)
	return root
}
