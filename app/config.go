package app

import (
	"encoding/json"
	nativeerrors "errors"
	"os"

	"github.com/gobuffalo/nulls"
	"github.com/lefinal/arena-server/errors"
	"go.uber.org/zap/zapcore"
)

// LogConfig is the configuration for logging.
type LogConfig struct {
	// StdoutLogLevel is the minimum level for log entries written to stdout.
	StdoutLogLevel zapcore.Level `json:"stdout_log_level"`
	// HighPriorityOutput is an optional file for warnings and errors.
	HighPriorityOutput nulls.String `json:"high_priority_output"`
	// DebugOutput is an optional file for the full debug log.
	DebugOutput nulls.String `json:"debug_output"`
	// MaxSize is the maximum size in megabytes of a log file before it gets
	// rotated.
	MaxSize int `json:"max_size"`
	// KeepDays is the maximum number of days to retain old log files.
	KeepDays int `json:"keep_days"`
}

// Config is the configuration needed in order to boot an App.
type Config struct {
	// DBConn is the connection string for the PostgreSQL database.
	DBConn string `json:"db_conn"`
	// ServeAddr is the address the app will listen for http and websocket
	// connections on.
	ServeAddr string `json:"serve_addr"`
	// MQTTAddr is the optional address of the MQTT broker for mirroring match
	// events. If not set, no portal connection is established.
	MQTTAddr nulls.String `json:"mqtt_addr"`
	// JudgeAddr is the base URL of the external judge service.
	JudgeAddr string `json:"judge_addr"`
	// JudgeTimeoutSec is the optional request timeout for judge calls.
	JudgeTimeoutSec nulls.Int `json:"judge_timeout_sec"`
	// GracePeriodSec is the optional reconnect grace period for disconnected
	// players in active matches.
	GracePeriodSec nulls.Int `json:"grace_period_sec"`
	// RetentionPeriodSec is the optional duration finished matches stay available
	// for state queries.
	RetentionPeriodSec nulls.Int `json:"retention_period_sec"`
	// Log is the logging configuration.
	Log LogConfig `json:"log"`
}

// LoadConfigFromFile reads and parses the Config from the file at the given
// path.
func LoadConfigFromFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.FromErr("read config file", errors.ErrFatal, err,
			errors.Details{"path": path})
	}
	var config Config
	err = json.Unmarshal(raw, &config)
	if err != nil {
		return Config{}, errors.NewJSONError(err, "parse config file", true)
	}
	return config, nil
}

// ValidateConfig assures that all required fields in the given Config are set.
func ValidateConfig(config Config) error {
	if config.DBConn == "" {
		return nativeerrors.New("missing db connection string")
	}
	if config.ServeAddr == "" {
		return nativeerrors.New("missing serve address")
	}
	if config.JudgeAddr == "" {
		return nativeerrors.New("missing judge address")
	}
	return nil
}
