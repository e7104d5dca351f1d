package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// envPrefix 环境变量前缀，如 BUREG_DB_HOST 覆盖 db.host
const envPrefix = "BUREG"

// Config 应用全局配置
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Mail         MailConfig         `mapstructure:"mail"`
	Log          LogConfig          `mapstructure:"log"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 仅列入白名单的前端来源可携带凭证访问
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 连接与连接池
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	Timezone        string        `mapstructure:"timezone"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN 生成 pgx 使用的 key=value 连接串
func (c *DatabaseConfig) DSN() string {
	parts := []string{
		"host=" + c.Host,
		fmt.Sprintf("port=%d", c.Port),
		"user=" + c.User,
		"password=" + c.Password,
		"dbname=" + c.Name,
		"sslmode=" + c.SSLMode,
	}
	if c.Timezone != "" {
		parts = append(parts, "TimeZone="+c.Timezone)
	}
	return strings.Join(parts, " ")
}

// RedisConfig Addr 为空时不启用缓存与 Token 黑名单
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 签发参数
type AuthConfig struct {
	JWTSecret               string        `mapstructure:"jwt_secret"`
	AccessTokenTTL          time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTLDefault  time.Duration `mapstructure:"refresh_token_ttl_default"`
	RefreshTokenTTLRemember time.Duration `mapstructure:"refresh_token_ttl_remember_me"`
	Cookie                  CookieConfig  `mapstructure:"cookie"`
}

// CookieConfig refresh_token Cookie 属性；Secure 同时决定是否下发 HSTS
type CookieConfig struct {
	Secure   bool   `mapstructure:"secure"`
	SameSite string `mapstructure:"same_site"`
	Domain   string `mapstructure:"domain"`
}

// MailConfig SendGrid 邮件配置
// Enabled=false 时邮件只写日志，不真正投递
type MailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	FromName  string `mapstructure:"from_name"`
	FromEmail string `mapstructure:"from_email"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RegistrationConfig 选课准入规则
type RegistrationConfig struct {
	MinCourseCredits int    `mapstructure:"min_course_credits"`
	MaxTermCredits   int    `mapstructure:"max_term_credits"`
	CardPrefix       string `mapstructure:"card_prefix"`
}

// SchedulerConfig 截止提醒定时任务
type SchedulerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ReminderCron   string        `mapstructure:"reminder_cron"`
	ReminderWindow time.Duration `mapstructure:"reminder_window"` // 截止前多久开始提醒
	Timezone       string        `mapstructure:"timezone"`
}

// defaults 未在配置文件和环境变量中出现的键取此值
var defaults = map[string]interface{}{
	"server.port":               8080,
	"server.base_url":           "http://localhost:8080",
	"server.cors.allow_origins": []string{"http://localhost:3000"},

	"db.host":               "localhost",
	"db.port":               5432,
	"db.name":               "bu_reg",
	"db.user":               "postgres",
	"db.sslmode":            "disable",
	"db.timezone":           "Africa/Kampala",
	"db.max_open_conns":     25,
	"db.max_idle_conns":     10,
	"db.conn_max_lifetime":  "1h",
	"db.conn_max_idle_time": "30m",

	"redis.addr": "localhost:6379",
	"redis.db":   0,

	"auth.access_token_ttl":              "15m",
	"auth.refresh_token_ttl_default":     "24h",
	"auth.refresh_token_ttl_remember_me": "168h",
	"auth.cookie.secure":                 false,
	"auth.cookie.same_site":              "lax",

	"mail.enabled":    false,
	"mail.from_name":  "BU Registration",
	"mail.from_email": "no-reply@bu.ac.ug",

	"log.level":  "info",
	"log.format": "json",

	"registration.min_course_credits": 3,
	"registration.max_term_credits":   24,
	"registration.card_prefix":        "BU",

	"scheduler.enabled":         true,
	"scheduler.reminder_cron":   "0 8 * * *",
	"scheduler.reminder_window": "72h",
	"scheduler.timezone":        "Africa/Kampala",
}

// Load 读取配置，优先级：环境变量 > 配置文件 > 默认值
// path 为空时依次查找 ./config/config.yaml 与 ./config.yaml，均不存在则只用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 一次性报告全部不合法的配置项
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("配置校验失败: "+format, args...))
	}

	switch {
	case c.Auth.JWTSecret == "":
		fail("auth.jwt_secret 不能为空")
	case len(c.Auth.JWTSecret) < 16:
		fail("auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		fail("server.port 必须在 1-65535 之间，当前 %d", c.Server.Port)
	}
	if c.Registration.MinCourseCredits <= 0 {
		fail("registration.min_course_credits 必须大于 0")
	} else if c.Registration.MaxTermCredits < c.Registration.MinCourseCredits {
		fail("registration.max_term_credits 不能小于 min_course_credits")
	}
	if c.Mail.Enabled && c.Mail.APIKey == "" {
		fail("启用邮件时 mail.api_key 不能为空")
	}
	switch strings.ToLower(c.Auth.Cookie.SameSite) {
	case "", "lax", "strict", "none":
	default:
		fail("auth.cookie.same_site 只能是 lax / strict / none，当前 %q", c.Auth.Cookie.SameSite)
	}
	if strings.EqualFold(c.Auth.Cookie.SameSite, "none") && !c.Auth.Cookie.Secure {
		fail("auth.cookie.same_site=none 要求 auth.cookie.secure=true")
	}
	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.ReminderCron); err != nil {
			fail("scheduler.reminder_cron 无效: %v", err)
		}
		if c.Scheduler.ReminderWindow <= 0 {
			fail("scheduler.reminder_window 必须大于 0")
		}
	}
	if c.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			fail("scheduler.timezone 无效: %v", err)
		}
	}
	return errors.Join(errs...)
}
