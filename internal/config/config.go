package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config 描述了 TubeDigest 在启动阶段需要加载的核心配置。
type Config struct {
	Runtime       RuntimeConfig       `json:"runtime"`
	Transcription TranscriptionConfig `json:"transcription"`
	Summary       SummaryConfig       `json:"summary"`
	Plugins       PluginsConfig       `json:"plugins"`
	Queue         QueueConfig         `json:"queue"`
	RunStore      RunStoreConfig      `json:"run_store"`
	Log           LogConfig           `json:"log"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir     string `json:"data_dir"`
	DownloadDir string `json:"download_dir"`
	OutputDir   string `json:"output_dir"`
	YtDlpBinary string `json:"yt_dlp_binary"`
}

// TranscriptionConfig 控制转录方式与语言偏好。
type TranscriptionConfig struct {
	// Method 为 whisper、whisper_cli 或 captions。
	Method       string `json:"method"`
	Language     string `json:"language"`
	PreferManual bool   `json:"prefer_manual"`
	WhisperModel string `json:"whisper_model"`
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
}

// SummaryConfig 控制摘要风格、篇幅与产物格式。
type SummaryConfig struct {
	Style   string `json:"style"`
	Length  string `json:"length"`
	Format  string `json:"format"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// PluginsConfig 描述插件清单目录与插件配置文件的位置。
type PluginsConfig struct {
	Dir        string `json:"dir"`
	ConfigPath string `json:"config_path"`
}

// QueueConfig 统一描述运行队列后端的连接信息。
type QueueConfig struct {
	// Driver 为 memory、redis 或 rabbitmq。
	Driver   string `json:"driver"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	Workers  int    `json:"workers"`
}

// RunStoreConfig 目前提供内存实现，也可以切换到 MySQL。
type RunStoreConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// LogConfig 控制日志级别、格式与审计输出。
type LogConfig struct {
	Level     string `json:"level"`
	Format    string `json:"format"`
	AuditPath string `json:"audit_path"`
}

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "TUBEDIGEST_CONFIG"

// Resolve 返回配置文件路径：命令行参数优先，其次环境变量。
func Resolve(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv(EnvConfigPath)
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// Default 返回不依赖配置文件的缺省配置，路径相对当前目录。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(".")
	return cfg
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	if c.Runtime.DownloadDir == "" {
		c.Runtime.DownloadDir = filepath.Join(c.Runtime.DataDir, "downloads")
	} else if !filepath.IsAbs(c.Runtime.DownloadDir) {
		c.Runtime.DownloadDir = filepath.Join(baseDir, c.Runtime.DownloadDir)
	}

	if c.Runtime.OutputDir == "" {
		c.Runtime.OutputDir = filepath.Join(c.Runtime.DataDir, "summaries")
	} else if !filepath.IsAbs(c.Runtime.OutputDir) {
		c.Runtime.OutputDir = filepath.Join(baseDir, c.Runtime.OutputDir)
	}

	if c.Runtime.YtDlpBinary == "" {
		c.Runtime.YtDlpBinary = "yt-dlp"
	}

	if c.Transcription.Method == "" {
		c.Transcription.Method = "whisper"
	}
	if c.Transcription.Language == "" {
		c.Transcription.Language = "en"
	}
	if c.Transcription.WhisperModel == "" {
		c.Transcription.WhisperModel = "whisper-1"
	}
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if c.Summary.Style == "" {
		c.Summary.Style = "comprehensive"
	}
	if c.Summary.Length == "" {
		c.Summary.Length = "medium"
	}
	if c.Summary.Format == "" {
		c.Summary.Format = "markdown"
	}
	if c.Summary.Model == "" {
		c.Summary.Model = "gpt-4o-mini"
	}
	if c.Summary.APIKey == "" {
		c.Summary.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if c.Plugins.Dir == "" {
		c.Plugins.Dir = filepath.Join(baseDir, "plugins")
	} else if !filepath.IsAbs(c.Plugins.Dir) {
		c.Plugins.Dir = filepath.Join(baseDir, c.Plugins.Dir)
	}
	if c.Plugins.ConfigPath == "" {
		c.Plugins.ConfigPath = filepath.Join(c.Plugins.Dir, "config.yaml")
	} else if !filepath.IsAbs(c.Plugins.ConfigPath) {
		c.Plugins.ConfigPath = filepath.Join(baseDir, c.Plugins.ConfigPath)
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "tubedigest:runs"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 1
	}

	if c.RunStore.Driver == "" {
		c.RunStore.Driver = "memory"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
