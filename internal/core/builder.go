package core

import (
	"rcpc/client"
	"rcpc/config"
	"rcpc/internal/capability"
	rcperr "rcpc/internal/errors"
	"rcpc/internal/service"
	"rcpc/util"
)

// Build constructs the appropriate Mode from the given configuration:
// a Launch session when a command is set, a Hold session otherwise.
func Build(cfg *config.Config, logger *util.Logger, opts ...client.Option) (Mode, error) {
	var capa capability.Capability
	if cfg.Command != "" {
		capa = buildLaunch(cfg, logger)
	} else {
		hold, err := buildHold(cfg, logger)
		if err != nil {
			return nil, err
		}
		capa = hold
	}

	return &SessionMode{
		Config:     cfg,
		Capability: capa,
		Logger:     logger,
		Options:    opts,
	}, nil
}

// ── capability builders ──────────────────────────────────────────────

func buildHold(cfg *config.Config, logger *util.Logger) (*capability.Hold, error) {
	kinds := make([]service.Kind, 0, len(cfg.Services))
	for _, name := range cfg.Services {
		kind, err := service.ParseKind(name)
		if err != nil {
			return nil, &rcperr.ConfigError{
				Field:   "service",
				Value:   name,
				Message: err.Error(),
			}
		}
		kinds = append(kinds, kind)
	}

	return &capability.Hold{
		Services:  kinds,
		KeepAlive: cfg.KeepAliveInterval,
		Logger:    logger.Named("hold"),
	}, nil
}

func buildLaunch(cfg *config.Config, logger *util.Logger) *capability.Launch {
	return &capability.Launch{
		Command: cfg.Command,
		Args:    cfg.Args,
		Timeout: cfg.ConnTimeout,
		Logger:  logger.Named("launch"),
	}
}
