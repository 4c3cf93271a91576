// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package holders

import (
	"bytes"
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/optionvm/cmd/optionvm/sweep"
)

type testLister struct {
	holders map[ids.ShortID][]ids.ShortID
	calls   int
}

func (l *testLister) GetHolders(_ context.Context, series, after ids.ShortID, limit uint32) ([]ids.ShortID, error) {
	l.calls++
	var page []ids.ShortID
	for _, holder := range l.holders[series] {
		if bytes.Compare(holder[:], after[:]) <= 0 {
			continue
		}
		page = append(page, holder)
		if uint32(len(page)) == limit {
			break
		}
	}
	return page, nil
}

func TestExport(t *testing.T) {
	require := require.New(t)

	series := ids.ShortID{0x01}
	empty := ids.ShortID{0x02}
	holders := []ids.ShortID{{0x11}, {0x12}, {0x13}}
	lister := &testLister{
		holders: map[ids.ShortID][]ids.ShortID{series: holders},
	}

	records, err := Export(context.Background(), lister, []ids.ShortID{series, empty}, 2)
	require.NoError(err)
	// Two pages for the first series, one for the empty one.
	require.Equal(3, lister.calls)
	require.Len(records, 3)
	for i, record := range records {
		require.Equal(common.Address(series).Hex(), record.Series)
		require.Equal(common.Address(holders[i]).Hex(), record.Holder)
	}

	batches, err := sweep.Batches(records, 10)
	require.NoError(err)
	require.Len(batches, 1)
	require.Equal(holders, batches[0].Holders)
}
