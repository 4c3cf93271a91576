// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package holders

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/luxfi/optionvm"
	"github.com/luxfi/optionvm/cmd/optionvm/sweep"
)

const (
	URIKey    = "uri"
	SeriesKey = "series"
	OutputKey = "output"
	PageKey   = "page-size"
)

var (
	errNoSeries      = errors.New("no series given")
	errInvalidSeries = errors.New("invalid series address")
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "holders",
		Short: "Exports the indexed redemption holders of series to a CSV file",
		RunE:  holdersFunc,
	}
	AddFlags(c.Flags())
	return c
}

func AddFlags(flags *pflag.FlagSet) {
	flags.String(URIKey, "http://127.0.0.1:9650/ext/optionvm", "API URI of the optionvm")
	flags.StringSlice(SeriesKey, nil, "Option or redemption addresses of the series to export (required)")
	flags.String(OutputKey, "holders.csv", "File the holders are written to")
	flags.Uint32(PageKey, 1024, "Holders fetched per call")
}

// Lister pages through the holders of a series.
type Lister interface {
	GetHolders(ctx context.Context, series, after ids.ShortID, limit uint32) ([]ids.ShortID, error)
}

type optionClient struct {
	client *optionvm.Client
}

func (c optionClient) GetHolders(ctx context.Context, series, after ids.ShortID, limit uint32) ([]ids.ShortID, error) {
	return c.client.GetHolders(ctx, series, after, limit)
}

func holdersFunc(c *cobra.Command, args []string) error {
	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		return err
	}
	uri, err := flags.GetString(URIKey)
	if err != nil {
		return err
	}
	seriesStrs, err := flags.GetStringSlice(SeriesKey)
	if err != nil {
		return err
	}
	if len(seriesStrs) == 0 {
		return errNoSeries
	}
	output, err := flags.GetString(OutputKey)
	if err != nil {
		return err
	}
	pageSize, err := flags.GetUint32(PageKey)
	if err != nil {
		return err
	}

	series := make([]ids.ShortID, len(seriesStrs))
	for i, s := range seriesStrs {
		if !common.IsHexAddress(s) {
			return errInvalidSeries
		}
		series[i] = ids.ShortID(common.HexToAddress(s))
	}

	records, err := Export(c.Context(), optionClient{client: optionvm.NewClient(uri)}, series, pageSize)
	if err != nil {
		return err
	}
	if err := sweep.WriteHolderFile(output, records); err != nil {
		return err
	}
	log.NewLogger(optionvm.Name).Info("holders exported",
		log.String("file", output),
		log.Int("rows", len(records)),
	)
	return nil
}

// Export lists every indexed holder of each series as holder file rows.
func Export(ctx context.Context, lister Lister, series []ids.ShortID, pageSize uint32) ([]*sweep.HolderRecord, error) {
	var records []*sweep.HolderRecord
	for _, s := range series {
		after := ids.ShortEmpty
		for {
			page, err := lister.GetHolders(ctx, s, after, pageSize)
			if err != nil {
				return nil, err
			}
			for _, holder := range page {
				records = append(records, &sweep.HolderRecord{
					Series: common.Address(s).Hex(),
					Holder: common.Address(holder).Hex(),
				})
			}
			if len(page) == 0 || uint32(len(page)) < pageSize {
				break
			}
			after = page[len(page)-1]
		}
	}
	return records, nil
}
