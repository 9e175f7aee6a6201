package config

import (
	"time"

	"github.com/Hajira-org/hajira-chat/pkg/chat/completion"
	"github.com/Hajira-org/hajira-chat/pkg/chat/relay"
	"github.com/Hajira-org/hajira-chat/pkg/chat/widget"
	pkgconfig "github.com/Hajira-org/hajira-chat/pkg/config"
)

type Config struct {
	Relay      relay.Config      `mapstructure:"relay"`
	Completion completion.Config `mapstructure:"completion"`
	Widget     widget.Config     `mapstructure:"widget"`
	Log        LogConfig         `mapstructure:"log"`
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

	rc := relay.DefaultConfig("ws://localhost:8090/ws")
	wc := widget.DefaultConfig()

	v.SetDefault("relay.url", rc.URL)
	v.SetDefault("relay.ping_interval", rc.PingInterval.String())
	v.SetDefault("relay.pong_wait", rc.PongWait.String())
	v.SetDefault("relay.write_wait", rc.WriteWait.String())
	v.SetDefault("relay.max_message_size", rc.MaxMessageSize)
	v.SetDefault("relay.send_buffer", rc.SendBuffer)
	v.SetDefault("completion.base_url", "http://localhost:8092")
	v.SetDefault("completion.timeout", "0s")
	v.SetDefault("completion.auth_token", "")
	v.SetDefault("widget.suggest.delay", wc.Suggest.Delay.String())
	v.SetDefault("widget.suggest.min_length", wc.Suggest.MinLength)
	v.SetDefault("widget.suggest.history_size", wc.Suggest.HistorySize)
	v.SetDefault("widget.assistant.history_size", wc.Assistant.HistorySize)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.pretty", true)

	_ = v.BindEnv("relay.url", "RELAY_URL")
	_ = v.BindEnv("completion.base_url", "ASSIST_URL")
	_ = v.BindEnv("completion.auth_token", "HAJIRA_TOKEN")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Relay.PingInterval = pkgconfig.Duration(v, "relay.ping_interval", rc.PingInterval)
	cfg.Relay.PongWait = pkgconfig.Duration(v, "relay.pong_wait", rc.PongWait)
	cfg.Relay.WriteWait = pkgconfig.Duration(v, "relay.write_wait", rc.WriteWait)
	cfg.Completion.Timeout = pkgconfig.Duration(v, "completion.timeout", 0)
	cfg.Widget.Suggest.Delay = pkgconfig.Duration(v, "widget.suggest.delay", wc.Suggest.Delay)

	return &cfg, nil
}

// DialTimeout bounds the initial relay handshake.
const DialTimeout = 10 * time.Second
