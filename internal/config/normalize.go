package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDiarization()
	c.normalizeAlign()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir()
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDiarization() {
	d := &c.Diarization
	d.Source = strings.ToLower(strings.TrimSpace(d.Source))
	if d.Source == "" {
		d.Source = defaultDiarizationSource
	}
	d.Command = strings.TrimSpace(d.Command)
	if d.Command == "" {
		d.Command = defaultDiarizerCommand
	}
	if len(d.Args) == 0 {
		d.Args = defaultDiarizerArgs()
	}
	d.OutputFormat = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d.OutputFormat)), ".")
	if d.OutputFormat == "" {
		d.OutputFormat = defaultDiarizerFormat
	}
	d.Model = strings.TrimSpace(d.Model)
	if d.Model == "" {
		d.Model = defaultDiarizationModel
	}
	d.HFToken = strings.TrimSpace(d.HFToken)
	if d.HFToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			d.HFToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			d.HFToken = strings.TrimSpace(value)
		}
	}
	d.ServiceURL = strings.TrimRight(strings.TrimSpace(d.ServiceURL), "/")
	if d.ServiceURL == "" {
		d.ServiceURL = defaultServiceURL
	}
}

func (c *Config) normalizeAlign() {
	c.Align.TieBreak = strings.ToLower(strings.TrimSpace(c.Align.TieBreak))
	if c.Align.TieBreak == "" {
		c.Align.TieBreak = defaultTieBreak
	}
	c.Align.Corpus = strings.TrimSpace(c.Align.Corpus)
	if c.Align.Corpus == "" {
		c.Align.Corpus = defaultCorpus
	}
	c.Align.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Align.DefaultLanguage))
	if c.Align.DefaultLanguage == "" {
		c.Align.DefaultLanguage = defaultLanguage
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = defaultBatchWorkers
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
