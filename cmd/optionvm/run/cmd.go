// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/spf13/cobra"

	"github.com/luxfi/optionvm"
	"github.com/luxfi/optionvm/api/server"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Runs an in-memory optionvm behind the JSON-RPC API",
		RunE:  runFunc,
	}
	AddFlags(c.Flags())
	return c
}

func runFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	genesisBytes, err := os.ReadFile(config.GenesisFile)
	if err != nil {
		return fmt.Errorf("failed to read genesis: %w", err)
	}
	var configBytes []byte
	if config.ConfigFile != "" {
		configBytes, err = os.ReadFile(config.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger := log.NewLogger(optionvm.Name)
	registry := metric.NewRegistry()
	factory := &optionvm.Factory{Registerer: registry}
	created, err := factory.New(logger)
	if err != nil {
		return err
	}
	vm := created.(*optionvm.VM)

	ctx := c.Context()
	if err := vm.Initialize(ctx, logger, memdb.New(), genesisBytes, configBytes); err != nil {
		return err
	}
	defer func() {
		if err := vm.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown vm", log.Err(err))
		}
	}()

	handlers, err := vm.CreateHandlers(ctx)
	if err != nil {
		return err
	}

	address := net.JoinHostPort(config.HTTPHost, strconv.Itoa(int(config.HTTPPort)))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	version, err := vm.Version(ctx)
	if err != nil {
		return err
	}
	apiServer, err := server.New(
		logger,
		listener,
		config.AllowedOrigins,
		config.ShutdownTimeout,
		version,
		registry,
		server.DefaultHTTPConfig,
		config.AllowedHosts,
	)
	if err != nil {
		return err
	}
	if err := apiServer.RegisterVM(optionvm.Name, handlers); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Dispatch()
	}()
	logger.Info("serving optionvm",
		log.String("address", "http://"+listener.Addr().String()+"/ext/"+optionvm.Name),
		log.String("version", version),
	)

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	err = apiServer.Shutdown()
	<-serverErr
	return err
}
