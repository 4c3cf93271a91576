// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luxfi/optionvm"
	"github.com/luxfi/optionvm/cmd/optionvm/holders"
	"github.com/luxfi/optionvm/cmd/optionvm/run"
	"github.com/luxfi/optionvm/cmd/optionvm/sweep"
)

func main() {
	cmd := &cobra.Command{
		Use:     optionvm.Name,
		Short:   "Collateralized option series",
		Version: optionvm.Version,
	}
	cmd.AddCommand(
		run.Command(),
		sweep.Command(),
		holders.Command(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "command failed %v\n", err)
		os.Exit(1)
	}
}
