package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"3000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:3000"`
	JWTSecret  string `env:"JWT_SECRET,required,notEmpty"`

	Postgres  PostgresConfig
	Store     StoreConfig
	Transport TransportConfig
	Redis     RedisConfig
	Room      RoomConfig
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"studyroom"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

// StoreConfig - ограничения на обращения к БД
type StoreConfig struct {
	Timeout time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
}

const (
	TransportLocal = "local"
	TransportNATS  = "nats"
)

type TransportConfig struct {
	Driver        string `env:"TRANSPORT_DRIVER" envDefault:"local"`
	NATSURL       string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"studyroom"`
}

// RedisConfig - кеш лидерборда. Пустой URL означает кеш в памяти.
type RedisConfig struct {
	URL       string `env:"REDIS_URL"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"studyroom:"`
}

type RoomConfig struct {
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"20s"`
	HeartbeatGraceFactor int           `env:"HEARTBEAT_GRACE_FACTOR" envDefault:"3"`
	IdleAfter            time.Duration `env:"IDLE_AFTER" envDefault:"60s"`
	TickInterval         time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	TypingTTL            time.Duration `env:"TYPING_TTL" envDefault:"5s"`

	MaxMessageLength int `env:"MAX_MESSAGE_LENGTH" envDefault:"2000"`
	// HistoryLimit - 0 отдает всю историю комнаты
	HistoryLimit int `env:"HISTORY_LIMIT" envDefault:"0"`

	KeyBcryptCost int `env:"ROOM_KEY_BCRYPT_COST" envDefault:"10"`
	SendBuffer    int `env:"SEND_BUFFER" envDefault:"256"`

	LeaderboardTimezone string `env:"LEADERBOARD_TIMEZONE" envDefault:"UTC"`

	location *time.Location
}

// Location - часовой пояс, в котором считаются границы дня лидерборда
func (r *RoomConfig) Location() *time.Location {
	if r.location == nil {
		return time.UTC
	}

	return r.location
}

// HeartbeatGrace - сколько соединение может молчать до принудительного выхода
func (r *RoomConfig) HeartbeatGrace() time.Duration {
	return r.HeartbeatInterval * time.Duration(r.HeartbeatGraceFactor)
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err = c.validate(); err != nil {
		return nil, err
	}

	c.Room.location, err = time.LoadLocation(c.Room.LeaderboardTimezone)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard timezone: %w", err)
	}

	return &c, nil
}

func (c *Config) validate() error {
	switch c.Transport.Driver {
	case TransportLocal, TransportNATS:
	default:
		return fmt.Errorf("unknown transport driver %q", c.Transport.Driver)
	}

	if c.Room.HeartbeatInterval <= 0 || c.Room.TickInterval <= 0 {
		return fmt.Errorf("heartbeat and tick intervals must be positive")
	}

	if c.Room.HeartbeatGraceFactor < 1 {
		return fmt.Errorf("heartbeat grace factor must be at least 1")
	}

	if c.Room.SendBuffer < 1 {
		return fmt.Errorf("send buffer must be at least 1")
	}

	return nil
}
