/*
Copyright 2024 Bancore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"BANCORE_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"BANCORE_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"BANCORE_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"BANCORE_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"BANCORE_REDIS_DNS"`
}

// GatewayConfig holds connection settings for the external payment gateway.
// TimeoutSec bounds every outbound call; a timeout during payment creation is
// treated as a gateway failure.
type GatewayConfig struct {
	BaseURL         string `json:"base_url" envconfig:"BANCORE_GATEWAY_BASE_URL"`
	AccessToken     string `json:"access_token" envconfig:"BANCORE_GATEWAY_ACCESS_TOKEN"`
	TimeoutSec      int    `json:"timeout_sec" envconfig:"BANCORE_GATEWAY_TIMEOUT_SEC"`
	SuccessURL      string `json:"success_url" envconfig:"BANCORE_GATEWAY_SUCCESS_URL"`
	FailureURL      string `json:"failure_url" envconfig:"BANCORE_GATEWAY_FAILURE_URL"`
	PendingURL      string `json:"pending_url" envconfig:"BANCORE_GATEWAY_PENDING_URL"`
	PixExpiryMinute int    `json:"pix_expiry_minutes" envconfig:"BANCORE_GATEWAY_PIX_EXPIRY_MINUTES"`
}

type AuditConfig struct {
	Url     string            `json:"url" envconfig:"BANCORE_AUDIT_URL"`
	Headers map[string]string `json:"headers"`
}

type QueueConfig struct {
	ReconciliationQueue string `json:"reconciliation_queue" envconfig:"BANCORE_QUEUE_RECONCILIATION"`
	MaxRetryAttempts    int    `json:"max_retry_attempts" envconfig:"BANCORE_QUEUE_MAX_RETRY_ATTEMPTS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"BANCORE_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"BANCORE_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"BANCORE_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"BANCORE_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Gateway      GatewayConfig    `json:"gateway"`
	Audit        AuditConfig      `json:"audit"`
	Queue        QueueConfig      `json:"queue"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("bancore", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called bancore.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Bancore Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Gateway.BaseURL = strings.TrimSpace(cnf.Gateway.BaseURL)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Gateway.TimeoutSec <= 0 {
		cnf.Gateway.TimeoutSec = 15
	}

	if cnf.Gateway.PixExpiryMinute <= 0 {
		cnf.Gateway.PixExpiryMinute = 30
	}

	if cnf.Queue.ReconciliationQueue == "" {
		cnf.Queue.ReconciliationQueue = "gateway_reconciliation"
	}

	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 5
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
