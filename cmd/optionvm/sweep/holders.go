// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sweep

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gocarina/gocsv"
	"github.com/luxfi/ids"
)

var errInvalidAddress = errors.New("invalid address")

// HolderRecord is one row of a holder file.
type HolderRecord struct {
	Series string `csv:"series"`
	Holder string `csv:"holder"`
}

// Batch is a set of holders of one series swept by a single call.
type Batch struct {
	Series  ids.ShortID
	Holders []ids.ShortID
}

func ReadHolderFile(path string) ([]*HolderRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []*HolderRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}

func WriteHolderFile(path string, records []*HolderRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(&records, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func parseAddress(s string) (ids.ShortID, error) {
	if !common.IsHexAddress(s) {
		return ids.ShortEmpty, fmt.Errorf("%w: %q", errInvalidAddress, s)
	}
	return ids.ShortID(common.HexToAddress(s)), nil
}

// Batches groups records by series, in order of first appearance, and splits
// every series into batches of at most size holders. Duplicate rows are
// dropped.
func Batches(records []*HolderRecord, size int) ([]Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid batch size %d", size)
	}

	var (
		order   []ids.ShortID
		holders = make(map[ids.ShortID][]ids.ShortID)
		seen    = make(map[[2]ids.ShortID]struct{})
	)
	for i, record := range records {
		series, err := parseAddress(record.Series)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		holder, err := parseAddress(record.Holder)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		key := [2]ids.ShortID{series, holder}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if _, ok := holders[series]; !ok {
			order = append(order, series)
		}
		holders[series] = append(holders[series], holder)
	}

	var batches []Batch
	for _, series := range order {
		all := holders[series]
		for len(all) > 0 {
			n := min(size, len(all))
			batches = append(batches, Batch{
				Series:  series,
				Holders: all[:n],
			})
			all = all[n:]
		}
	}
	return batches, nil
}
