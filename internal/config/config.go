package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"points-miner/internal/types"
)

const defaultConfigPath = "/etc/points-miner/config.yaml"

type Config struct {
	Username      string              `yaml:"username" validate:"required"`
	AWS           AWSConfig           `yaml:"aws"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Miner         MinerConfig         `yaml:"miner"`
	Settings      StreamerSettings    `yaml:"streamer_settings"`
	Streamers     []StreamerConfig    `yaml:"streamers" validate:"dive"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type AWSConfig struct {
	Region        string `yaml:"region"`
	SQSQueueURL   string `yaml:"sqs_queue_url"`
	DynamoDBTable string `yaml:"dynamodb_table"`
}

type GatewayConfig struct {
	BaseURL string   `yaml:"base_url" validate:"required,url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout" validate:"gt=0"`
}

type MinerConfig struct {
	TickInterval      Duration    `yaml:"tick_interval" validate:"gt=0"`
	WatchLimit        int         `yaml:"watch_limit" validate:"min=1"`
	MinDwell          Duration    `yaml:"min_dwell" validate:"min=0"`
	StreakMinutes     int         `yaml:"streak_minutes" validate:"min=1"`
	StreakResetAfter  Duration    `yaml:"streak_reset_after" validate:"min=0"`
	Priority          []string    `yaml:"priority" validate:"dive,oneof=STREAK DROPS ORDER"`
	Order             OrderConfig `yaml:"order"`
	Followers         bool        `yaml:"followers"`
	FollowersOrder    string      `yaml:"followers_order" validate:"oneof=ASC DESC"`
	ClaimDropsStartup bool        `yaml:"claim_drops_startup"`
	Workers           int         `yaml:"workers" validate:"min=1"`
	QueueSize         int         `yaml:"queue_size" validate:"min=1"`
	Retry             RetryConfig `yaml:"retry"`
	PersistSchedule   string      `yaml:"persist_schedule"`
}

type OrderConfig struct {
	By        string `yaml:"by" validate:"oneof=CONFIG POINTS FOLLOWED_AT"`
	Direction string `yaml:"direction" validate:"oneof=ASC DESC"`
}

type RetryConfig struct {
	Attempts       int      `yaml:"attempts" validate:"min=1,max=10"`
	InitialBackoff Duration `yaml:"initial_backoff" validate:"gt=0"`
	CallTimeout    Duration `yaml:"call_timeout" validate:"gt=0"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// Default returns the configuration used for any key the file leaves out.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Timeout: Duration(10 * time.Second),
		},
		Miner: MinerConfig{
			TickInterval:     Duration(time.Minute),
			WatchLimit:       2,
			MinDwell:         Duration(5 * time.Minute),
			StreakMinutes:    7,
			StreakResetAfter: Duration(30 * time.Minute),
			Priority:         []string{"STREAK", "DROPS", "ORDER"},
			Order:            OrderConfig{By: "CONFIG", Direction: "ASC"},
			FollowersOrder:   "ASC",
			Workers:          4,
			QueueSize:        64,
			Retry: RetryConfig{
				Attempts:       5,
				InitialBackoff: Duration(time.Second),
				CallTimeout:    Duration(10 * time.Second),
			},
			PersistSchedule: "@every 1m",
		},
		Notifications: NotificationsConfig{
			QueueSize:     32,
			SendTimeout:   Duration(10 * time.Second),
			RatePerSecond: 1,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Parse decodes YAML on top of Default without validating.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

func (c *Config) applyEnv() {
	if val := os.Getenv("MINER_USERNAME"); val != "" {
		c.Username = val
	}
	if val := os.Getenv("AWS_REGION"); val != "" {
		c.AWS.Region = val
	}
	if val := os.Getenv("PLATFORM_EVENTS_QUEUE_URL"); val != "" {
		c.AWS.SQSQueueURL = val
	}
	if val := os.Getenv("DYNAMODB_TABLE"); val != "" {
		c.AWS.DynamoDBTable = val
	}
	if val := os.Getenv("GATEWAY_BASE_URL"); val != "" {
		c.Gateway.BaseURL = val
	}
	if val := os.Getenv("GATEWAY_TOKEN"); val != "" {
		c.Gateway.Token = val
	}
	if val := os.Getenv("TELEGRAM_TOKEN"); val != "" {
		c.Notifications.Telegram.Token = val
	}
	if val := os.Getenv("TELEGRAM_CHAT_ID"); val != "" {
		if id, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Notifications.Telegram.ChatID = id
		}
	}
	if val := os.Getenv("DISCORD_WEBHOOK"); val != "" {
		c.Notifications.Discord.WebhookAPI = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
}

// PriorityModes converts the configured priority names into ranker modes.
func (c *Config) PriorityModes() []types.PriorityMode {
	modes := make([]types.PriorityMode, 0, len(c.Miner.Priority))
	for _, p := range c.Miner.Priority {
		mode := types.PriorityMode{Kind: types.PriorityKind(p)}
		if mode.Kind == types.PriorityOrder {
			mode.By = types.OrderBy(c.Miner.Order.By)
			mode.Direction = types.Direction(c.Miner.Order.Direction)
		}
		modes = append(modes, mode)
	}
	return modes
}

// Duration is a time.Duration read from a YAML string such as "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
