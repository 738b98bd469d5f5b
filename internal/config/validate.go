package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDiarization(); err != nil {
		return err
	}
	if err := c.validateAlign(); err != nil {
		return err
	}
	if c.Batch.Workers <= 0 {
		return errors.New("batch.workers must be positive")
	}
	return c.validateLogging()
}

func (c *Config) validateDiarization() error {
	d := c.Diarization
	switch d.Source {
	case SourceFile:
	case SourceCommand:
		if d.Command == "" {
			return errors.New("diarization.command must be set when diarization.source is command")
		}
		if !containsPlaceholder(d.Args, "{audio}") {
			return errors.New("diarization.args must reference {audio}")
		}
	case SourceService:
		parsed, err := url.Parse(d.ServiceURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("diarization.service_url %q is not an absolute URL", d.ServiceURL)
		}
	default:
		return fmt.Errorf("diarization.source must be one of %s, %s, %s (got %q)", SourceFile, SourceCommand, SourceService, d.Source)
	}
	switch d.OutputFormat {
	case "json", "rttm", "yaml", "yml":
	default:
		return fmt.Errorf("diarization.output_format must be json, rttm or yaml (got %q)", d.OutputFormat)
	}
	if d.TimeoutSeconds < 0 {
		return errors.New("diarization.timeout_seconds must not be negative")
	}
	if d.NumSpeakers < 0 {
		return errors.New("diarization.num_speakers must not be negative")
	}
	return nil
}

func (c *Config) validateAlign() error {
	switch c.Align.TieBreak {
	case "none", "longest_overlap":
	default:
		return fmt.Errorf("align.tie_break must be one of none, longest_overlap (got %q)", c.Align.TieBreak)
	}
	if len(c.Align.DefaultLanguage) != 3 {
		return fmt.Errorf("align.default_language must be an ISO 639-2 code (got %q)", c.Align.DefaultLanguage)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
	return nil
}

func containsPlaceholder(args []string, placeholder string) bool {
	for _, arg := range args {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}
