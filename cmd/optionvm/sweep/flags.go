// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sweep

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/luxfi/optionvm/config"
)

const (
	URIKey         = "uri"
	HolderFileKey  = "holder-file"
	BatchSizeKey   = "batch-size"
	ConcurrencyKey = "concurrency"

	defaultURI = "http://127.0.0.1:9650/ext/optionvm"
)

var errMissingHolderFile = errors.New("missing holder file")

func AddFlags(flags *pflag.FlagSet) {
	flags.String(URIKey, defaultURI, "API URI of the optionvm")
	flags.String(HolderFileKey, "", "CSV file with series and holder columns (required)")
	flags.Int(BatchSizeKey, config.DefaultConfig.MaxSweepHolders, "Holders swept per call")
	flags.Int(ConcurrencyKey, 4, "Sweep calls in flight")
}

type Config struct {
	URI         string
	HolderFile  string
	BatchSize   int
	Concurrency int
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	uri, err := flags.GetString(URIKey)
	if err != nil {
		return nil, err
	}

	holderFile, err := flags.GetString(HolderFileKey)
	if err != nil {
		return nil, err
	}
	if holderFile == "" {
		return nil, errMissingHolderFile
	}

	batchSize, err := flags.GetInt(BatchSizeKey)
	if err != nil {
		return nil, err
	}

	concurrency, err := flags.GetInt(ConcurrencyKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		URI:         uri,
		HolderFile:  holderFile,
		BatchSize:   batchSize,
		Concurrency: max(concurrency, 1),
	}, nil
}
