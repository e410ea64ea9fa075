package config

type NotificationsConfig struct {
	TemplatesDir  string   `yaml:"templates_dir"`
	QueueSize     int      `yaml:"queue_size" validate:"min=1"`
	SendTimeout   Duration `yaml:"send_timeout" validate:"gt=0"`
	RatePerSecond float64  `yaml:"rate_per_second" validate:"gt=0"`

	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
	Slack    SlackConfig    `yaml:"slack"`
	Matrix   MatrixConfig   `yaml:"matrix"`
	Pushover PushoverConfig `yaml:"pushover"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

type TelegramConfig struct {
	Enabled             bool     `yaml:"enabled"`
	ChatID              int64    `yaml:"chat_id" validate:"required_if=Enabled true"`
	Token               string   `yaml:"token" validate:"required_if=Enabled true"`
	Events              []string `yaml:"events" validate:"dive,event_tag"`
	DisableNotification bool     `yaml:"disable_notification"`
}

type DiscordConfig struct {
	Enabled    bool     `yaml:"enabled"`
	WebhookAPI string   `yaml:"webhook_api" validate:"required_if=Enabled true,omitempty,url"`
	Events     []string `yaml:"events" validate:"dive,event_tag"`
}

type SlackConfig struct {
	Enabled    bool     `yaml:"enabled"`
	WebhookURL string   `yaml:"webhook_url" validate:"required_if=Enabled true,omitempty,url"`
	Events     []string `yaml:"events" validate:"dive,event_tag"`
}

type MatrixConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Homeserver  string   `yaml:"homeserver" validate:"required_if=Enabled true"`
	AccessToken string   `yaml:"access_token" validate:"required_if=Enabled true"`
	RoomID      string   `yaml:"room_id" validate:"required_if=Enabled true"`
	Events      []string `yaml:"events" validate:"dive,event_tag"`
}

type PushoverConfig struct {
	Enabled  bool     `yaml:"enabled"`
	UserKey  string   `yaml:"userkey" validate:"required_if=Enabled true"`
	Token    string   `yaml:"token" validate:"required_if=Enabled true"`
	Priority int      `yaml:"priority" validate:"min=-2,max=2"`
	Sound    string   `yaml:"sound"`
	Events   []string `yaml:"events" validate:"dive,event_tag"`
}

type WebhookConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint" validate:"required_if=Enabled true,omitempty,url"`
	Events   []string `yaml:"events" validate:"dive,event_tag"`
}
