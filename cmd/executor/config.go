package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"cppexec/internal/sandbox/engine"
	"cppexec/internal/sandbox/spec"
	"cppexec/internal/sandbox/toolchain"
	"cppexec/pkg/utils/logger"
	"cppexec/pkg/utils/yamlutil"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = 8004
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 90 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxConcurrent   = 4
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string            `yaml:"addr"`
	ReadTimeout  yamlutil.Duration `yaml:"readTimeout"`
	WriteTimeout yamlutil.Duration `yaml:"writeTimeout"`
	IdleTimeout  yamlutil.Duration `yaml:"idleTimeout"`
}

// ExecutorConfig holds pipeline settings.
type ExecutorConfig struct {
	WorkRoot               string `yaml:"workRoot"`
	MaxExecutionTimeSecond int    `yaml:"maxExecutionTimeSeconds"`
	MaxMemoryMB            int64  `yaml:"maxMemoryMB"`
	MaxCodeSizeKB          int64  `yaml:"maxCodeSizeKB"`
	MaxConcurrent          int    `yaml:"maxConcurrent"`
}

// AppConfig holds executor service config.
type AppConfig struct {
	Server    ServerConfig     `yaml:"server"`
	Logger    logger.Config    `yaml:"logger"`
	Executor  ExecutorConfig   `yaml:"executor"`
	Toolchain toolchain.Config `yaml:"toolchain"`
	Sandbox   engine.Config    `yaml:"sandbox"`
}

// loadAppConfig reads the optional YAML config file and applies defaults.
// The PORT environment variable overrides the configured listen address,
// which is the only environment-driven setting.
func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file failed: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file failed: %w", err)
		}
	}

	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = yamlutil.Duration(defaultReadTimeout)
	}
	if cfg.Server.WriteTimeout == 0 {
		// Write timeout must outlast the hard execution ceiling, or the
		// server would cut off responses for long-running submissions.
		cfg.Server.WriteTimeout = yamlutil.Duration(defaultWriteTimeout)
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = yamlutil.Duration(defaultIdleTimeout)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = fmt.Sprintf("0.0.0.0:%d", defaultPort)
	}
	if portEnv := os.Getenv("PORT"); portEnv != "" {
		port, err := strconv.Atoi(portEnv)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT value %q", portEnv)
		}
		cfg.Server.Addr = fmt.Sprintf("0.0.0.0:%d", port)
	}

	if cfg.Executor.MaxExecutionTimeSecond <= 0 {
		cfg.Executor.MaxExecutionTimeSecond = spec.DefaultWallTimeSeconds
	}
	if cfg.Executor.MaxMemoryMB <= 0 {
		cfg.Executor.MaxMemoryMB = spec.DefaultMemoryMB
	}
	if cfg.Executor.MaxCodeSizeKB <= 0 {
		cfg.Executor.MaxCodeSizeKB = spec.DefaultCodeSizeKB
	}
	if cfg.Executor.MaxConcurrent <= 0 {
		cfg.Executor.MaxConcurrent = defaultMaxConcurrent
	}

	return &cfg, nil
}

func (e ExecutorConfig) toDefaults() spec.Defaults {
	return spec.Defaults{
		WallTimeSeconds: e.MaxExecutionTimeSecond,
		MemoryMB:        e.MaxMemoryMB,
		CodeSizeKB:      e.MaxCodeSizeKB,
	}
}
