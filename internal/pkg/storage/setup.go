package storage

import (
	"fmt"
	"sync"
)

var (
	globalClient *Client
	setupOnce    sync.Once
)

// Setup loads the storage configuration from the environment and builds
// the global client. Must run before GetClient.
func Setup() (*Client, error) {
	var err error
	setupOnce.Do(func() {
		var cfg *Config
		cfg, err = LoadConfig()
		if err != nil {
			err = fmt.Errorf("failed to load storage config: %w", err)
			return
		}
		globalClient, err = NewClient(cfg)
	})
	if err != nil {
		return nil, err
	}
	if globalClient == nil {
		return nil, fmt.Errorf("storage client not initialized")
	}
	return globalClient, nil
}

// GetClient returns the global storage client
func GetClient() *Client {
	if globalClient == nil {
		panic("Storage client not initialized. Call Setup first.")
	}
	return globalClient
}

// SetClientForTest installs a client directly. Not for production use.
func SetClientForTest(client *Client) {
	globalClient = client
}
