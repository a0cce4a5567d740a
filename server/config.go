/******************************************************************************
 *
 *  Description :
 *
 *    Run-time configuration. The config file is JSON with comments,
 *    command line flags override individual values.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tinode/jsonco"
)

type configType struct {
	// Broker address, e.g. "tcp://localhost:1883".
	BrokerAddr string `json:"broker_addr"`
	// Bound in milliseconds on directory snapshot fetches.
	SnapshotTimeout int `json:"snapshot_timeout"`
	// Presence republish period in milliseconds.
	HeartbeatInterval int `json:"heartbeat_interval"`
	// Address of the debug HTTP listener; empty disables it.
	DebugListen string `json:"debug_listen"`
	// URL path of the expvar handler on the debug listener.
	ExpvarPath string `json:"expvar"`
}

func defaultConfig() configType {
	return configType{
		BrokerAddr:        "tcp://localhost:1883",
		SnapshotTimeout:   2000,
		HeartbeatInterval: 30000,
		ExpvarPath:        "/debug/vars",
	}
}

func loadConfig(path string) (*configType, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := defaultConfig()
	jr := jsonco.New(file)
	if err := json.NewDecoder(jr).Decode(&config); err != nil {
		return nil, fmt.Errorf("config '%s': %w", path, err)
	}
	return &config, nil
}

func (c *configType) snapshotWait() time.Duration {
	return time.Duration(c.SnapshotTimeout) * time.Millisecond
}

func (c *configType) heartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatInterval) * time.Millisecond
}
