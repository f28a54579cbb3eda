package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"bridgesim/ship"
)

const (
	fileName  = "bridgesim"
	envPrefix = "BRIDGESIM"
)

// LogConfig 日志文件与轮转
type LogConfig struct {
	File       string `json:"file" mapstructure:"file"`
	Level      string `json:"level" mapstructure:"level"`
	MaxSizeMB  int    `json:"maxSizeMB" mapstructure:"maxSizeMB"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays" mapstructure:"maxAgeDays"`
}

// SimConfig 扇区模拟参数
type SimConfig struct {
	TicksPerSecond   int    `json:"ticksPerSecond" mapstructure:"ticksPerSecond"`
	DefaultSector    string `json:"defaultSector" mapstructure:"defaultSector"`
	MaxInputsPerTick int    `json:"maxInputsPerTick" mapstructure:"maxInputsPerTick"`
}

// ReplicationConfig 同步增量下发频率
type ReplicationConfig struct {
	FlushHz int `json:"flushHz" mapstructure:"flushHz"`
}

// RecorderConfig 战斗记录库
type RecorderConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Path      string `json:"path" mapstructure:"path"`
	QueueSize int    `json:"queueSize" mapstructure:"queueSize"`
}

// TelemetryConfig otel 指标导出；File 为空时写到标准输出
type TelemetryConfig struct {
	Enabled         bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName     string `json:"serviceName" mapstructure:"serviceName"`
	File            string `json:"file" mapstructure:"file"`
	IntervalSeconds int    `json:"intervalSeconds" mapstructure:"intervalSeconds"`
}

type Config struct {
	Addr        string            `json:"addr" mapstructure:"addr"`
	Log         LogConfig         `json:"log" mapstructure:"log"`
	Sim         SimConfig         `json:"sim" mapstructure:"sim"`
	Replication ReplicationConfig `json:"replication" mapstructure:"replication"`
	Recorder    RecorderConfig    `json:"recorder" mapstructure:"recorder"`
	Telemetry   TelemetryConfig   `json:"telemetry" mapstructure:"telemetry"`
	Templates   []ship.Template   `json:"templates" mapstructure:"templates"`
}

func setDefaults() {
	viper.SetDefault("addr", ":8080")

	viper.SetDefault("log.file", "./logs/server.log")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.maxSizeMB", 50)
	viper.SetDefault("log.maxBackups", 5)
	viper.SetDefault("log.maxAgeDays", 7)

	viper.SetDefault("sim.ticksPerSecond", 20)
	viper.SetDefault("sim.defaultSector", "alpha")
	viper.SetDefault("sim.maxInputsPerTick", 256)

	viper.SetDefault("replication.flushHz", 10)

	viper.SetDefault("recorder.enabled", true)
	viper.SetDefault("recorder.path", "./combat.db")
	viper.SetDefault("recorder.queueSize", 1024)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.serviceName", "bridgesim")
	viper.SetDefault("telemetry.file", "./logs/metrics.json")
	viper.SetDefault("telemetry.intervalSeconds", 30)
}

// Load 读取 configDir 下的 bridgesim.json，环境变量 BRIDGESIM_* 覆盖同名键。
// 配置文件不存在时只用默认值；模板为空时使用内置舰型
func Load(configDir string) (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(fileName)
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(cfg.Templates) == 0 {
		cfg.Templates = ship.DefaultTemplates()
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Sim.TicksPerSecond <= 0 || c.Sim.TicksPerSecond > 120 {
		return fmt.Errorf("sim.ticksPerSecond out of range: %d", c.Sim.TicksPerSecond)
	}
	if c.Replication.FlushHz <= 0 {
		return fmt.Errorf("replication.flushHz must be positive: %d", c.Replication.FlushHz)
	}
	if c.Sim.DefaultSector == "" {
		return errors.New("sim.defaultSector is empty")
	}
	if c.Telemetry.Enabled && c.Telemetry.IntervalSeconds <= 0 {
		return fmt.Errorf("telemetry.intervalSeconds must be positive: %d", c.Telemetry.IntervalSeconds)
	}
	if c.Recorder.Enabled && c.Recorder.QueueSize <= 0 {
		return fmt.Errorf("recorder.queueSize must be positive: %d", c.Recorder.QueueSize)
	}
	return nil
}
