package config

import (
	"time"

	pkgconfig "github.com/Hajira-org/hajira-chat/pkg/config"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Jobs   JobsConfig   `mapstructure:"jobs"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LLMConfig points at an OpenAI-compatible chat completions API.
type LLMConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	SuggestModel string        `mapstructure:"suggest_model"`
	AssistModel  string        `mapstructure:"assist_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type JobsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig is optional. An empty Address disables the job summary cache.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func Load(configPath string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8092)
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.suggest_model", "llama-3.1-8b-instant")
	v.SetDefault("llm.assist_model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("jobs.base_url", "http://localhost:5000")
	v.SetDefault("jobs.timeout", "5s")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.prefix", "assist:jobs")
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Env overrides (for Docker)
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("llm.base_url", "LLM_BASE_URL")
	_ = v.BindEnv("llm.api_key", "GROQ_API_KEY")
	_ = v.BindEnv("jobs.base_url", "JOBS_API_URL")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.LLM.Timeout = pkgconfig.Duration(v, "llm.timeout", 30*time.Second)
	cfg.Jobs.Timeout = pkgconfig.Duration(v, "jobs.timeout", 5*time.Second)
	cfg.Cache.TTL = pkgconfig.Duration(v, "cache.ttl", 30*time.Second)

	return &cfg, nil
}
