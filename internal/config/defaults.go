package config

const (
	defaultConfigPath        = "~/.config/chatalign/config.toml"
	projectConfigName        = "chatalign.toml"
	defaultStateDir          = "~/.local/share/chatalign"
	defaultLogDir            = "~/.local/share/chatalign/logs"
	defaultLogRetentionDays  = 30
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultDiarizationSource = "file"
	defaultDiarizerCommand   = "pyannote-diarize"
	defaultDiarizerFormat    = "json"
	defaultDiarizationModel  = "pyannote/speaker-diarization-3.1"
	defaultServiceURL        = "http://127.0.0.1:8000"
	defaultDiarizerTimeout   = 1800
	defaultTieBreak          = "none"
	defaultCorpus            = "corpus_name"
	defaultLanguage          = "eng"
	defaultBatchWorkers      = 2
)

// Diarization sources.
const (
	SourceFile    = "file"
	SourceCommand = "command"
	SourceService = "service"
)

func defaultDiarizerArgs() []string {
	return []string{"--model", "{model}", "--output", "{output}", "{audio}"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			WorkDir:  defaultWorkDir(),
		},
		Diarization: Diarization{
			Source:         defaultDiarizationSource,
			Command:        defaultDiarizerCommand,
			Args:           defaultDiarizerArgs(),
			OutputFormat:   defaultDiarizerFormat,
			Model:          defaultDiarizationModel,
			ServiceURL:     defaultServiceURL,
			TimeoutSeconds: defaultDiarizerTimeout,
		},
		Align: Align{
			TurnPass:        true,
			TieBreak:        defaultTieBreak,
			Corpus:          defaultCorpus,
			DefaultLanguage: defaultLanguage,
			Backup:          true,
		},
		Batch: Batch{
			Workers: defaultBatchWorkers,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
