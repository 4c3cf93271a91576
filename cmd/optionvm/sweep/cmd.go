// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sweep

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/optionvm"
	"github.com/luxfi/optionvm/guard"
)

// Sweeper is the part of the API client sweeps are issued through.
type Sweeper interface {
	Sweep(ctx context.Context, series ids.ShortID, holders []ids.ShortID) (*uint256.Int, error)
}

type optionClient struct {
	client *optionvm.Client
}

func (c optionClient) Sweep(ctx context.Context, series ids.ShortID, holders []ids.ShortID) (*uint256.Int, error) {
	return c.client.Sweep(ctx, series, holders)
}

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "sweep",
		Short: "Redeems the listed holders of expired series",
		RunE:  sweepFunc,
	}
	AddFlags(c.Flags())
	return c
}

func sweepFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	records, err := ReadHolderFile(config.HolderFile)
	if err != nil {
		return err
	}
	batches, err := Batches(records, config.BatchSize)
	if err != nil {
		return err
	}

	logger := log.NewLogger(optionvm.Name)
	client := optionClient{client: optionvm.NewClient(config.URI)}
	totals, err := Run(c.Context(), logger, client, batches, config.Concurrency)
	for series, total := range totals {
		logger.Info("series swept",
			log.String("series", common.Address(series).Hex()),
			log.String("units", total.Dec()),
		)
	}
	return err
}

// Run issues the batches with at most concurrency calls in flight and returns
// the units redeemed per series. Batches of series that are not expired yet
// are skipped. The first other failure stops the remaining batches.
func Run(
	ctx context.Context,
	logger log.Logger,
	sweeper Sweeper,
	batches []Batch,
	concurrency int,
) (map[ids.ShortID]*uint256.Int, error) {
	var (
		lock   sync.Mutex
		totals = make(map[ids.ShortID]*uint256.Int)
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for _, batch := range batches {
		eg.Go(func() error {
			swept, err := sweeper.Sweep(ctx, batch.Series, batch.Holders)
			if errors.Is(err, guard.ErrContractNotExpired) {
				logger.Warn("series not expired",
					log.String("series", common.Address(batch.Series).Hex()),
				)
				return nil
			}
			if err != nil {
				return err
			}

			lock.Lock()
			defer lock.Unlock()

			total, ok := totals[batch.Series]
			if !ok {
				total = new(uint256.Int)
				totals[batch.Series] = total
			}
			total.Add(total, swept)
			return nil
		})
	}
	err := eg.Wait()
	return totals, err
}
