package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"audioindex/internal/audioservice"
	"audioindex/internal/config"
	"audioindex/internal/logging"
	"audioindex/internal/snapshot"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	serviceOnce sync.Once
	service     *audioservice.Service
	serviceErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// logger writes to the command's stderr, and to the log directory when one is
// configured.
func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	if strings.TrimSpace(cfg.Logging.Dir) != "" {
		if logger, err := logging.NewFromConfig(cfg); err == nil {
			return logger
		}
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withService opens the configured service once per process and passes it to fn.
func (c *commandContext) withService(cmd *cobra.Command, fn func(context.Context, *audioservice.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c.serviceOnce.Do(func() {
		c.service, c.serviceErr = audioservice.Open(ctx, cfg, c.logger(cmd), nil)
	})
	if c.serviceErr != nil {
		return c.serviceErr
	}
	return fn(ctx, c.service)
}

func (c *commandContext) snapshotReader(cmd *cobra.Command) (*snapshot.Reader, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return snapshot.NewReader(cfg.Paths.SnapshotPath, c.logger(cmd)), nil
}

func (c *commandContext) close() error {
	if c.service == nil {
		return nil
	}
	err := c.service.Close()
	c.service = nil
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
