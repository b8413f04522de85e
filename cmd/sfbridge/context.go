package main

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/sf-bridge/engine"
	"github.com/cwbudde/sf-bridge/internal/config"
	"github.com/cwbudde/sf-bridge/internal/logging"
	_ "github.com/cwbudde/sf-bridge/piano"
	"github.com/cwbudde/sf-bridge/wasmhost"
)

//go:embed default_bank.json
var defaultBank []byte

func configSample() string { return config.SampleConfig() }

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*zap.Logger, error) {
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

// engineFlags are the per-command overrides of the engine and audio
// sections.
type engineFlags struct {
	module     string
	bank       string
	sampleRate int
	blockSize  int
	channels   int
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.module, "module", "", "Engine module path or native engine name (overrides engine.module)")
	cmd.Flags().StringVar(&f.bank, "bank", "", "Instrument bank path (overrides engine.bank)")
	cmd.Flags().IntVar(&f.sampleRate, "sample-rate", 0, "Sample rate in Hz (overrides audio.sample_rate)")
	cmd.Flags().IntVar(&f.blockSize, "block-size", 0, "Frames per render tick (overrides audio.block_size)")
	cmd.Flags().IntVar(&f.channels, "channels", 0, "Output channels, 1 or 2 (overrides audio.channels)")
}

// resolve returns a copy of the loaded configuration with the flags applied.
func (c *commandContext) resolve(f *engineFlags) (config.Config, error) {
	loaded, err := c.ensureConfig()
	if err != nil {
		return config.Config{}, err
	}
	cfg := *loaded
	if f.module != "" {
		cfg.Engine.Module = f.module
	}
	if f.bank != "" {
		cfg.Engine.Bank = f.bank
	}
	if f.sampleRate != 0 {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if f.blockSize != 0 {
		cfg.Audio.BlockSize = f.blockSize
	}
	if f.channels != 0 {
		cfg.Audio.Channels = f.channels
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// moduleBytes reads engine.module as a file when it exists and otherwise
// passes the value on as a native engine name.
func moduleBytes(cfg config.Config) ([]byte, error) {
	ref := cfg.Engine.Module
	info, err := os.Stat(ref)
	if err != nil || info.IsDir() {
		return []byte(ref), nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("read engine module: %w", err)
	}
	return data, nil
}

func bankBytes(cfg config.Config) ([]byte, error) {
	if cfg.Engine.Bank == "" {
		return defaultBank, nil
	}
	data, err := os.ReadFile(cfg.Engine.Bank)
	if err != nil {
		return nil, fmt.Errorf("read instrument bank: %w", err)
	}
	return data, nil
}

func newLoader(log *zap.Logger) engine.Loader {
	return engine.DetectLoader(engine.NativeLoader{}, wasmhost.NewLoader(wasmhost.Options{Logger: log}))
}
