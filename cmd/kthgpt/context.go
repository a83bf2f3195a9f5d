package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"kthgpt/internal/config"
	"kthgpt/internal/language"
	"kthgpt/internal/logging"
	"kthgpt/internal/services"
	"kthgpt/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
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

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// withStore opens the database for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(cfg, st)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// findLecture resolves a lecture by public id and user-supplied language.
func findLecture(ctx context.Context, st *store.Store, publicID, lang string) (*store.Lecture, error) {
	parsed, err := language.Parse(lang)
	if err != nil {
		return nil, err
	}
	lecture, err := st.FindLecture(ctx, strings.TrimSpace(publicID), parsed.String())
	if err != nil {
		return nil, err
	}
	if lecture == nil {
		return nil, fmt.Errorf("%w: lecture %s (%s); add it with `kthgpt lecture add`", services.ErrNotFound, publicID, parsed)
	}
	return lecture, nil
}

func addLanguageFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "language", "l", "en", "Lecture language (en or sv)")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
