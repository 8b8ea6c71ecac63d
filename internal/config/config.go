package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Research ResearchConfig `yaml:"research"`
	Log      LogConfig      `yaml:"log"`
	// Concurrency 限制对 LLM 的请求速率
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
	Server      ServerConfig      `yaml:"server"`
	Output      OutputConfig      `yaml:"output"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// SearchConfig 搜索提供方相关配置
type SearchConfig struct {
	Google  GoogleConfig  `yaml:"google"`
	SearXNG SearXNGConfig `yaml:"searxng"`
	// FallbackToSearXNG 商业搜索零结果时是否回退到聚合器
	FallbackToSearXNG bool `yaml:"fallback_to_searxng"`
}

// GoogleConfig 商业搜索（Google Programmable Search）配置
type GoogleConfig struct {
	APIKey   string `yaml:"api_key"`
	EngineID string `yaml:"engine_id"`
	Language string `yaml:"language"`
}

// SearXNGConfig 自建聚合器配置
type SearXNGConfig struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// ExcludeClause 追加在查询后的站点排除子句，用于降噪
	ExcludeClause string   `yaml:"exclude_clause"`
	Engines       []string `yaml:"engines"`
	Timeout       int      `yaml:"timeout"`
}

// ResearchConfig 研究编排相关配置。
// 这些值原本是按单一提供方的未公开限额调出来的常量，
// 提供方限额不同时应在这里覆盖。
type ResearchConfig struct {
	// Workers 搜索任务的并发上限
	Workers int `yaml:"workers"`
	// TaskDelayMS 每个搜索任务完成后的固定间隔（毫秒）
	TaskDelayMS int `yaml:"task_delay_ms"`
	// MaxReportTokens 报告生成的输出 token 上限
	MaxReportTokens int `yaml:"max_report_tokens"`
	// EnrichContent 摘要过短时是否抓取正文补充
	EnrichContent bool `yaml:"enrich_content"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Timeout string `yaml:"timeout"`
}

// OutputConfig 产物输出配置
type OutputConfig struct {
	HTMLPath string `yaml:"html_path"`
}

// LoadConfig 从指定路径加载配置并填充默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Research.Workers <= 0 {
		c.Research.Workers = 2
	}
	if c.Research.TaskDelayMS <= 0 {
		c.Research.TaskDelayMS = 2000
	}
	if c.Research.MaxReportTokens <= 0 {
		c.Research.MaxReportTokens = 1200
	}
	if c.Search.SearXNG.ExcludeClause == "" {
		c.Search.SearXNG.ExcludeClause = "-site:*.ru -site:*.by"
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 30
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
}
