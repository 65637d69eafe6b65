package bootstrap

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是服务的完整配置快照。
type Config struct {
	App     AppConfig     `yaml:"app"`
	Infra   InfraConfig   `yaml:"infra"`
	Order   OrderConfig   `yaml:"order"`
	Payment PaymentConfig `yaml:"payment"`
	Fleet   FleetConfig   `yaml:"fleet"`
	Notify  NotifyConfig  `yaml:"notify"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	Currency string `yaml:"currency"`
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type MySQLConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	NotificationTopic string   `yaml:"notification_topic"`
}

type JaegerConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// ZookeeperConfig 为空时钱包锁退化为进程内锁。
type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
}

// NacosConfig 的 Addrs 为空时跳过注册与配置中心。
type NacosConfig struct {
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
	DataID    string `yaml:"data_id"`
}

type OrderConfig struct {
	ShippingFee         string        `yaml:"shipping_fee"`
	ProcessingTimeout   time.Duration `yaml:"processing_timeout"`
	DefaultNearbyRadius float64       `yaml:"default_nearby_radius"`
}

type PaymentConfig struct {
	BaseURL      string        `yaml:"base_url"`
	ClientID     string        `yaml:"client_id"`
	APIKey       string        `yaml:"api_key"`
	ChecksumKey  string        `yaml:"checksum_key"`
	ReturnURL    string        `yaml:"return_url"`
	CancelURL    string        `yaml:"cancel_url"`
	Timeout      time.Duration `yaml:"timeout"`
	IntentTTL    time.Duration `yaml:"intent_ttl"`
	VerifyGrace  time.Duration `yaml:"verify_grace"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollMinAge   time.Duration `yaml:"poll_min_age"`
	PollBatch    int           `yaml:"poll_batch"`
}

type FleetConfig struct {
	StaleAfter time.Duration `yaml:"stale_after"`
}

type NotifyConfig struct {
	QueueSize int `yaml:"queue_size"`
	Workers   int `yaml:"workers"`
}

// DefaultConfig 返回本地开发可直接使用的默认值。
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Name: "delivery-service", Port: 8080, LogLevel: "info", Currency: "VND"},
		Infra: InfraConfig{
			MySQL:     MySQLConfig{DSN: "root:root@tcp(localhost:3306)/delivery?charset=utf8mb4&parseTime=True&loc=Local", MaxOpenConns: 50, MaxIdleConns: 10},
			Redis:     RedisConfig{Addr: "localhost:6379"},
			Kafka:     KafkaConfig{Brokers: []string{"localhost:9092"}, NotificationTopic: "notifications"},
			Jaeger:    JaegerConfig{SampleRatio: 1},
			Zookeeper: ZookeeperConfig{SessionTimeout: 5 * time.Second, LockTimeout: 10 * time.Second},
			Nacos:     NacosConfig{Group: "DEFAULT_GROUP", DataID: "delivery-service.yaml"},
		},
		Order: OrderConfig{ShippingFee: "15000", ProcessingTimeout: 10 * time.Second, DefaultNearbyRadius: 5000},
		Payment: PaymentConfig{
			BaseURL:      "https://api-merchant.payos.vn",
			Timeout:      10 * time.Second,
			IntentTTL:    15 * time.Minute,
			VerifyGrace:  time.Hour,
			PollInterval: 30 * time.Second,
			PollMinAge:   time.Minute,
			PollBatch:    50,
		},
		Fleet:  FleetConfig{StaleAfter: 2 * time.Minute},
		Notify: NotifyConfig{QueueSize: 1024, Workers: 4},
	}
}

var current atomic.Pointer[Config]

func init() {
	current.Store(DefaultConfig())
}

// GetCurrentConfig 返回当前生效的配置快照，调用方不应修改它。
func GetCurrentConfig() *Config {
	return current.Load()
}

// SetCurrentConfig 原子地替换配置快照。
func SetCurrentConfig(cfg *Config) {
	current.Store(cfg)
}

// ParseConfig 在默认值之上解析 YAML。
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	return cfg, nil
}

// LoadConfig 读取 YAML 文件并应用环境变量覆盖；文件不存在时只用默认值。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if cfg, err = ParseConfig(data); err != nil {
			return nil, err
		}
	case !os.IsNotExist(err):
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	applyEnv(cfg)
	return cfg, nil
}

// applyEnv 让部署环境覆盖基础设施地址与密钥。
func applyEnv(cfg *Config) {
	cfg.Infra.MySQL.DSN = getEnv("MYSQL_DSN", cfg.Infra.MySQL.DSN)
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", cfg.Infra.Redis.Addr)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Nacos.Addrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.Addrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if servers := getEnv("ZOOKEEPER_SERVERS", ""); servers != "" {
		cfg.Infra.Zookeeper.Servers = strings.Split(servers, ",")
	}
	cfg.Payment.ClientID = getEnv("PAYOS_CLIENT_ID", cfg.Payment.ClientID)
	cfg.Payment.APIKey = getEnv("PAYOS_API_KEY", cfg.Payment.APIKey)
	cfg.Payment.ChecksumKey = getEnv("PAYOS_CHECKSUM_KEY", cfg.Payment.ChecksumKey)
}

// getEnv 从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
