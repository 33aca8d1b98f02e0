// Package config loads service configuration from an optional YAML file
// with DRIFTWATCH_* environment overrides. Every knob has a default, so a
// bare binary runs without any file.
package config

// #region imports
import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// #endregion

// #region config-types

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Decision DecisionConfig `mapstructure:"decision"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// MonitorConfig tunes the background loop.
type MonitorConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	MinLabeled        int           `mapstructure:"min_labeled"`
	MinRetrainLabeled int           `mapstructure:"min_retrain_labeled"`
	AccuracyWindow    int           `mapstructure:"accuracy_window"`
	AnomalyRecency    time.Duration `mapstructure:"anomaly_recency"`
	LowConfCutoff     float64       `mapstructure:"low_confidence_cutoff"`
}

// DecisionConfig tunes the retraining decision engine.
type DecisionConfig struct {
	MinLabeled       int           `mapstructure:"min_labeled"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	MaxModelAge      time.Duration `mapstructure:"max_model_age"`
	BaselineWindow   int           `mapstructure:"baseline_window"`
	DegradationRatio float64       `mapstructure:"degradation_ratio"`
	LowConfTrigger   float64       `mapstructure:"low_confidence_trigger"`
	GrowthTrigger    float64       `mapstructure:"growth_trigger"`
	Threshold        float64       `mapstructure:"threshold"`
}

// AnomalyConfig tunes the detectors.
type AnomalyConfig struct {
	MinHistory      int     `mapstructure:"min_history"`
	Confidence      float64 `mapstructure:"confidence"`
	Season          int     `mapstructure:"season"`
	SpikeHighPValue float64 `mapstructure:"spike_high_pvalue"`
	MartingaleHigh  float64 `mapstructure:"martingale_high"`
}

// #endregion config-types

// #region load

// Load reads configuration. path may be empty; environment variables of the
// form DRIFTWATCH_SECTION_KEY override file values either way.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DRIFTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("store.path", "driftwatch.db")

	v.SetDefault("monitor.interval", "30s")
	v.SetDefault("monitor.min_labeled", 5)
	v.SetDefault("monitor.min_retrain_labeled", 10)
	v.SetDefault("monitor.accuracy_window", 20)
	v.SetDefault("monitor.anomaly_recency", "10m")
	v.SetDefault("monitor.low_confidence_cutoff", 0.6)

	v.SetDefault("decision.min_labeled", 10)
	v.SetDefault("decision.cooldown", "1h")
	v.SetDefault("decision.max_model_age", "168h")
	v.SetDefault("decision.baseline_window", 5)
	v.SetDefault("decision.degradation_ratio", 0.90)
	v.SetDefault("decision.low_confidence_trigger", 0.30)
	v.SetDefault("decision.growth_trigger", 0.50)
	v.SetDefault("decision.threshold", 0.5)

	v.SetDefault("anomaly.min_history", 12)
	v.SetDefault("anomaly.confidence", 0.95)
	v.SetDefault("anomaly.season", 3)
	v.SetDefault("anomaly.spike_high_pvalue", 0.01)
	v.SetDefault("anomaly.martingale_high", 0.9)
}

func validate(cfg Config) error {
	if cfg.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %s", cfg.Monitor.Interval)
	}
	if cfg.Decision.Threshold <= 0 || cfg.Decision.Threshold > 1 {
		return fmt.Errorf("decision.threshold must be in (0,1], got %v", cfg.Decision.Threshold)
	}
	if cfg.Anomaly.Confidence <= 0 || cfg.Anomaly.Confidence >= 1 {
		return fmt.Errorf("anomaly.confidence must be in (0,1), got %v", cfg.Anomaly.Confidence)
	}
	return nil
}

// #endregion load
