package commands

import (
	"forummigrate/lib/configutil"
	"time"
)

const (
	RENDERER_CHROME = "chrome"
	RENDERER_STATIC = "static"
)

type AuthConfig struct {
	Enabled  bool   `json:"enabled"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ParsingConfig struct {
	Renderer              string `json:"renderer"`
	Headless              *bool  `json:"headless"`
	UserAgent             string `json:"user_agent"`
	ChromePath            string `json:"chrome_path"`
	PageLoadTimeoutSec    int    `json:"page_load_timeout_sec"`
	GracePeriodMs         int    `json:"grace_period_ms"`
	DelayBetweenRequestMs int    `json:"delay_between_requests_ms"`

	MaxCategories          int `json:"max_categories"`
	MaxPostsPerSubcategory int `json:"max_posts_per_subcategory"`
	MaxCommentsPerPost     int `json:"max_comments_per_post"`
	MaxLoadMoreRounds      int `json:"max_load_more_rounds"`
	Workers                int `json:"workers"`
}

type CrawlAttachmentsConfig struct {
	DownloadDir       string   `json:"download_dir"`
	AllowedExtensions []string `json:"allowed_extensions"`
	MaxFileSizeMB     float64  `json:"max_file_size_mb"`
	MaxRetries        uint64   `json:"max_retries"`
}

type ExportConfig struct {
	OutputDir string `json:"output_dir"`
}

// CrawlConfig is crawl.json5.
type CrawlConfig struct {
	ForumUrl    string                 `json:"forum_url"`
	Timezone    string                 `json:"timezone"`
	Selectors   map[string]string      `json:"selectors"`
	Auth        AuthConfig             `json:"auth"`
	Parsing     ParsingConfig          `json:"parsing"`
	Attachments CrawlAttachmentsConfig `json:"attachments"`
	Export      ExportConfig           `json:"export"`
}

func (c CrawlConfig) withDefaults() CrawlConfig {
	if c.Parsing.Renderer == "" {
		c.Parsing.Renderer = RENDERER_CHROME
	}
	if c.Parsing.Headless == nil {
		headless := true
		c.Parsing.Headless = &headless
	}
	if c.Parsing.PageLoadTimeoutSec <= 0 {
		c.Parsing.PageLoadTimeoutSec = 30
	}
	if c.Parsing.GracePeriodMs <= 0 {
		c.Parsing.GracePeriodMs = 2000
	}
	if c.Parsing.DelayBetweenRequestMs <= 0 {
		c.Parsing.DelayBetweenRequestMs = 1000
	}
	if c.Parsing.MaxLoadMoreRounds <= 0 {
		c.Parsing.MaxLoadMoreRounds = 20
	}
	if c.Parsing.Workers <= 0 {
		c.Parsing.Workers = 1
	}
	if c.Attachments.DownloadDir == "" {
		c.Attachments.DownloadDir = "downloads"
	}
	if c.Attachments.MaxRetries == 0 {
		c.Attachments.MaxRetries = 3
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "exports"
	}
	return c
}

func (c CrawlConfig) delay() time.Duration {
	return time.Duration(c.Parsing.DelayBetweenRequestMs) * time.Millisecond
}

func (c CrawlConfig) grace() time.Duration {
	return time.Duration(c.Parsing.GracePeriodMs) * time.Millisecond
}

func (c CrawlConfig) pageLoadTimeout() time.Duration {
	return time.Duration(c.Parsing.PageLoadTimeoutSec) * time.Second
}

func readCrawlConfig(path string) (CrawlConfig, error) {
	cfg, err := configutil.ReadConfig[CrawlConfig](path)
	if err != nil {
		return CrawlConfig{}, err
	}
	configutil.OverrideFromEnv(&cfg.Auth.Username, "FORUM_USERNAME")
	configutil.OverrideFromEnv(&cfg.Auth.Password, "FORUM_PASSWORD")
	return cfg.withDefaults(), nil
}

type ApiConfig struct {
	Key      string `json:"key"`
	Username string `json:"username"`
}

type ImportSettings struct {
	DryRun                bool   `json:"dry_run"`
	DelayBetweenRequestMs int    `json:"delay_between_requests_ms"`
	MappingDb             string `json:"mapping_db"`
	MaxRetries            uint64 `json:"max_retries"`
}

type ContentConfig struct {
	ConvertToMarkdown bool   `json:"convert_to_markdown"`
	PreserveDates     bool   `json:"preserve_dates"`
	AddDisclaimer     bool   `json:"add_disclaimer"`
	DisclaimerText    string `json:"disclaimer_text"`
}

type ImportAttachmentsConfig struct {
	UploadAttachments bool    `json:"upload_attachments"`
	MaxFileSizeMB     float64 `json:"max_file_size_mb"`
}

type StatsConfig struct {
	SaveStats bool   `json:"save_stats"`
	StatsFile string `json:"stats_file"`
}

// ImportConfig is import.json5.
type ImportConfig struct {
	DiscourseUrl string                  `json:"discourse_url"`
	Api          ApiConfig               `json:"api"`
	Import       ImportSettings          `json:"import"`
	Content      ContentConfig           `json:"content"`
	Attachments  ImportAttachmentsConfig `json:"attachments"`
	Stats        StatsConfig             `json:"stats"`
}

func (c ImportConfig) withDefaults() ImportConfig {
	if c.Import.DelayBetweenRequestMs <= 0 {
		c.Import.DelayBetweenRequestMs = 1000
	}
	if c.Import.MappingDb == "" {
		c.Import.MappingDb = "mapping.db"
	}
	if c.Import.MaxRetries == 0 {
		c.Import.MaxRetries = 3
	}
	if c.Content.DisclaimerText == "" {
		c.Content.DisclaimerText = "*Imported from the old forum. Originally posted {date} by {author}.*"
	}
	if c.Stats.StatsFile == "" {
		c.Stats.StatsFile = "import_stats.json"
	}
	return c
}

func readImportConfig(path string) (ImportConfig, error) {
	cfg, err := configutil.ReadConfig[ImportConfig](path)
	if err != nil {
		return ImportConfig{}, err
	}
	configutil.OverrideFromEnv(&cfg.Api.Key, "DISCOURSE_API_KEY")
	configutil.OverrideFromEnv(&cfg.Api.Username, "DISCOURSE_API_USERNAME")
	return cfg.withDefaults(), nil
}
