// Package storage provides the Elasticsearch persistence sink.
package storage

import (
	"errors"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/gigharvest/internal/logger"
)

// Config holds Elasticsearch connection settings.
type Config struct {
	// Addresses of the cluster nodes
	Addresses []string `yaml:"addresses" mapstructure:"addresses"`
	// Username for basic auth, optional
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	// Password for basic auth, optional
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	// APIKey for key auth, optional
	APIKey string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	// GigIndex is the index gigs are upserted into
	GigIndex string `yaml:"gig_index" mapstructure:"gig_index"`
}

// NewClient creates and pings an Elasticsearch client.
func NewClient(cfg *Config, log logger.Interface) (*es.Client, error) {
	if cfg == nil || len(cfg.Addresses) == 0 {
		return nil, errors.New("elasticsearch configuration is required")
	}

	log.Debug("Connecting to Elasticsearch", "addresses", cfg.Addresses)

	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error pinging Elasticsearch: %s", res.String())
	}

	return client, nil
}
