package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/matchdesk/console/internal/journal"
)

// OTelConfig holds OpenTelemetry export settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./matchdesklogs")
	viper.SetDefault("statusPath", "./status.json")
	viper.SetDefault("operatorId", "")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.websocketUrl", "ws://localhost:5000/ws")

	viper.SetDefault("match.id", "")
	viper.SetDefault("match.refetchInterval", "5s")

	viper.SetDefault("journal.type", "sqlite")
	viper.SetDefault("journal.path", "./matchdesk_journal.db")
	viper.SetDefault("journal.host", "localhost")
	viper.SetDefault("journal.port", "5432")
	viper.SetDefault("journal.username", "postgres")
	viper.SetDefault("journal.password", "postgres")
	viper.SetDefault("journal.database", "matchdesk")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "matchdesk-metrics")
	viper.SetDefault("influx.backupPath", "./matchdesk_metrics.gz")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "matchdesk-console")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("matchdesk.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetJournalConfig returns the typed journal settings.
func GetJournalConfig() journal.Config {
	return journal.Config{
		Type:     viper.GetString("journal.type"),
		Path:     viper.GetString("journal.path"),
		Host:     viper.GetString("journal.host"),
		Port:     viper.GetString("journal.port"),
		Username: viper.GetString("journal.username"),
		Password: viper.GetString("journal.password"),
		Database: viper.GetString("journal.database"),
	}
}

// GetOTelConfig returns the typed OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetRefetchInterval returns how often the console refetches the match
// snapshot for clock comparison.
func GetRefetchInterval() time.Duration {
	return viper.GetDuration("match.refetchInterval")
}
