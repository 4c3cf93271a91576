// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

const (
	HTTPHostKey        = "http-host"
	HTTPPortKey        = "http-port"
	GenesisFileKey     = "genesis-file"
	ConfigFileKey      = "config-file"
	AllowedOriginsKey  = "allowed-origins"
	AllowedHostsKey    = "allowed-hosts"
	ShutdownTimeoutKey = "shutdown-timeout"
)

var errMissingGenesis = errors.New("missing genesis file")

func AddFlags(flags *pflag.FlagSet) {
	flags.String(HTTPHostKey, "127.0.0.1", "Address the API server listens on")
	flags.Uint16(HTTPPortKey, 9650, "Port the API server listens on")
	flags.String(GenesisFileKey, "", "Genesis file applied on first start (required)")
	flags.String(ConfigFileKey, "", "VM config file")
	flags.StringSlice(AllowedOriginsKey, []string{"*"}, "Origins allowed to make cross origin requests")
	flags.StringSlice(AllowedHostsKey, []string{"localhost"}, "Host names the API server answers to")
	flags.Duration(ShutdownTimeoutKey, 10*time.Second, "Time allowed for in flight requests on shutdown")
}

type Config struct {
	HTTPHost        string
	HTTPPort        uint16
	GenesisFile     string
	ConfigFile      string
	AllowedOrigins  []string
	AllowedHosts    []string
	ShutdownTimeout time.Duration
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	host, err := flags.GetString(HTTPHostKey)
	if err != nil {
		return nil, err
	}

	port, err := flags.GetUint16(HTTPPortKey)
	if err != nil {
		return nil, err
	}

	genesisFile, err := flags.GetString(GenesisFileKey)
	if err != nil {
		return nil, err
	}
	if genesisFile == "" {
		return nil, errMissingGenesis
	}

	configFile, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}

	origins, err := flags.GetStringSlice(AllowedOriginsKey)
	if err != nil {
		return nil, err
	}

	hosts, err := flags.GetStringSlice(AllowedHostsKey)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := flags.GetDuration(ShutdownTimeoutKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPHost:        host,
		HTTPPort:        port,
		GenesisFile:     genesisFile,
		ConfigFile:      configFile,
		AllowedOrigins:  origins,
		AllowedHosts:    hosts,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}
