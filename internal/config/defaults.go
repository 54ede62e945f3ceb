package config

const (
	defaultDataDir              = "~/.local/share/dealradar"
	defaultDownloadDir          = "~/.local/share/dealradar/downloads"
	defaultLogDir               = "~/.local/share/dealradar/logs"
	defaultDatabasePath         = "~/.local/share/dealradar/dealradar.db"
	defaultLockPath             = "~/.local/share/dealradar/dealradar.lock"
	defaultAPIBind              = "127.0.0.1:7488"
	defaultMaxConcurrentTasks   = 2
	defaultMaxCompanyNameLength = 120
	defaultStageTimeoutSeconds  = 3600
	defaultTaskLogLines         = 50
	defaultKeepTasks            = 50
	defaultUserAgent            = "Mozilla/5.0 (X11; Linux x86_64) dealradar/1.0"
	defaultHTTPTimeoutSeconds   = 30
	defaultRequestsPerSecond    = 2
	defaultBurst                = 1
	defaultMaxSubPages          = 5
	defaultMaxDocuments         = 20
	defaultMinBytes             = 1024
	defaultMaxBytes             = 200 * 1024 * 1024
	defaultPDFToTextBinary      = "pdftotext"
	defaultChunkSize            = 1000
	defaultChunkOverlap         = 200
	defaultMinChunkChars        = 50
	defaultEvidencePerCategory  = 5
	defaultLLMBaseURL           = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel             = "gpt-4o-mini"
	defaultLLMTitle             = "dealradar"
	defaultLLMTimeoutSeconds    = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

var defaultIRPaths = []string{
	"/investors",
	"/investor-relations",
	"/investors/financial-reports",
	"/investors/results-center",
	"/investors/results",
	"/finance",
	"/en/investors",
	"/en/investor-relations",
	"/group/en/investors",
	"/about-us/investor-relations",
	"/corporate/investor-relations",
	"/about/investors",
}

var defaultIRKeywords = []string{
	"investor",
	"investors",
	"investor relations",
	"annual report",
	"financial reports",
	"results",
	"shareholders",
	"reports and presentations",
}

var defaultPriorityKeywords = []string{
	"annual report",
	"jahresbericht",
	"universal registration document",
	"integrated report",
	"financial report",
	"financial statements",
	"geschäftsbericht",
	"results presentation",
	"form 20-f",
	"10-k",
	"full year results",
	"half year results",
	"annual results",
	"annual review",
}

var defaultSubPageKeywords = []string{
	"report",
	"results",
	"publications",
	"financial",
	"archive",
	"downloads",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			DownloadDir:  defaultDownloadDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
			LockPath:     defaultLockPath,
			APIBind:      defaultAPIBind,
		},
		Pipeline: Pipeline{
			MaxConcurrentTasks:   defaultMaxConcurrentTasks,
			MaxCompanyNameLength: defaultMaxCompanyNameLength,
			StageTimeoutSeconds:  defaultStageTimeoutSeconds,
			StageTimeouts:        map[string]int{},
			TaskLogLines:         defaultTaskLogLines,
			KeepTasks:            defaultKeepTasks,
		},
		HTTP: HTTP{
			UserAgent:         defaultUserAgent,
			TimeoutSeconds:    defaultHTTPTimeoutSeconds,
			RequestsPerSecond: defaultRequestsPerSecond,
			Burst:             defaultBurst,
		},
		Discovery: Discovery{
			IRPaths:    append([]string(nil), defaultIRPaths...),
			IRKeywords: append([]string(nil), defaultIRKeywords...),
		},
		Collect: Collect{
			PriorityKeywords: append([]string(nil), defaultPriorityKeywords...),
			SubPageKeywords:  append([]string(nil), defaultSubPageKeywords...),
			MaxSubPages:      defaultMaxSubPages,
		},
		Download: Download{
			MaxDocuments: defaultMaxDocuments,
			MinBytes:     defaultMinBytes,
			MaxBytes:     defaultMaxBytes,
		},
		Extract: Extract{
			PDFToTextBinary: defaultPDFToTextBinary,
			ChunkSize:       defaultChunkSize,
			ChunkOverlap:    defaultChunkOverlap,
			MinChunkChars:   defaultMinChunkChars,
		},
		Scoring: Scoring{
			EvidencePerCategory: defaultEvidencePerCategory,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
