package main

import (
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/storefront"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type cli struct {
	verbose bool
	log     *zap.Logger
	app     *storefront.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Browse products, manage your cart and place orders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.close()
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at the configured level instead of warn")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.registerCmd(),
		c.productsCmd(),
		c.productCmd(),
		c.cartCmd(),
		c.addCmd(),
		c.updateCmd(),
		c.removeCmd(),
		c.clearCmd(),
		c.checkoutCmd(),
		c.ordersCmd(),
		c.cancelCmd(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := "warn"
	if c.verbose {
		level = cfg.LogLevel
	}
	c.log, err = logger.New(cfg.Env, level)
	if err != nil {
		return err
	}

	c.app, err = storefront.New(cfg, storefront.Deps{Logger: c.log})
	if err != nil {
		return fmt.Errorf("build storefront: %w", err)
	}
	return c.app.Start(cmd.Context())
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	_ = c.log.Sync()
	return err
}
