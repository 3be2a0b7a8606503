// Package config provides configuration types and utilities for the AI agent framework.
// This file implements YAML loading, env-var expansion, and file watching.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// loadConfig reads a YAML file from disk and decodes it into cfg.
func loadConfig(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}
	return loadConfigFromBytes(data, cfg)
}

// loadConfigFromString decodes a YAML document held in memory into cfg.
func loadConfigFromString(yamlContent string, cfg *Config) error {
	return loadConfigFromBytes([]byte(yamlContent), cfg)
}

// loadConfigFromBytes parses raw YAML, expands environment variable
// references, and decodes the result into cfg via mapstructure (so
// `yaml` tags on the Config tree double as the decode keys).
func loadConfigFromBytes(data []byte, cfg *Config) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse yaml: %w", err)
	}

	expanded := ExpandEnvVarsInData(raw)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(expanded); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	return nil
}

// Watcher reloads a Config from disk whenever its backing file changes and
// invokes onChange with the freshly validated result. Reload errors are
// logged and the previous, still-valid Config remains in effect.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	onChange func(*Config)
	done     chan struct{}
}

// NewWatcher starts watching filePath for writes. onChange is invoked from
// the watcher's own goroutine after each successful reload; call Close to
// stop watching and release the underlying inotify/kqueue handle.
func NewWatcher(filePath string, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filePath); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filePath, err)
	}

	w := &Watcher{
		path:     filePath,
		fsw:      fsw,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadConfig(w.path)
			if err != nil {
				slog.Error("config reload failed", "path", w.path, "error", err)
				continue
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				slog.Error("config reload rejected", "path", w.path, "error", err)
				continue
			}
			slog.Info("config reloaded", "path", w.path)
			if w.onChange != nil {
				w.onChange(cfg)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "path", w.path, "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher and releases its underlying handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
