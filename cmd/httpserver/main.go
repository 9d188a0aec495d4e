package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/invoice-financing-protocol/api/handlers"
	"github.com/ruteri/invoice-financing-protocol/cmd/flags"
	"github.com/ruteri/invoice-financing-protocol/common"
	"github.com/ruteri/invoice-financing-protocol/cryptoutils"
	"github.com/ruteri/invoice-financing-protocol/httpserver"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/ruteri/invoice-financing-protocol/ledger"
	"github.com/ruteri/invoice-financing-protocol/metrics"
	"github.com/ruteri/invoice-financing-protocol/registry"
	"github.com/ruteri/invoice-financing-protocol/storage"
	"github.com/urfave/cli/v2"
)

var serverFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "listen-addr",
		Value:   "127.0.0.1:8080",
		Usage:   "address to listen on for API",
		EnvVars: []string{"LISTEN_ADDR"},
	},
	&cli.StringFlag{
		Name:  "ledger",
		Value: "memory",
		Usage: "settlement ledger: 'memory' or 'eth'",
	},
	&cli.StringSliceFlag{
		Name:  "fund",
		Usage: "initial memory ledger balance as address=amount, may be repeated",
	},
	flags.RpcAddrFlag,
	&cli.StringFlag{
		Name:  "escrow-key-file",
		Usage: "escrow key paying out fundings (required if ledger is 'eth')",
	},
	&cli.StringFlag{
		Name:    "escrow-key-passphrase",
		Usage:   "passphrase of an encrypted escrow key file",
		EnvVars: []string{"ESCROW_KEY_PASSPHRASE"},
	},
	&cli.DurationFlag{
		Name:  "settle-timeout",
		Value: ledger.DefaultMineTimeout,
		Usage: "how long an eth settlement is waited on once sent",
	},
	&cli.StringSliceFlag{
		Name:    "storage",
		Usage:   "storage backend URI for the event journal and snapshots, may be repeated (file://, s3://, ipfs://, vault://)",
		EnvVars: []string{"STORAGE_URIS"},
	},
	&cli.IntFlag{
		Name:  "journal-buffer",
		Value: 1024,
		Usage: "events held in memory before recording blocks",
	},
	&cli.StringFlag{
		Name:  "restore-snapshot",
		Usage: "hex content id of a snapshot to restore on startup",
	},
	flags.LogServiceFlagFn("invoice-financing"),
}

func main() {
	app := &cli.App{
		Name:  "financing-server",
		Usage: "Serve the invoice financing protocol API",
		Flags: append(append(serverFlags, flags.CommonFlags...), flags.ProtocolFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr"))

			configOpts, err := flags.ProtocolConfig(cCtx)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			settlement, err := setupLedger(ctx, cCtx, &configOpts, logger.With("component", "ledger"))
			if err != nil {
				logger.Error("Failed to set up ledger", "err", err)
				return err
			}

			metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
			if err != nil {
				return err
			}
			protocolMetrics := metrics.NewProtocolMetrics(metricsSrv.Registerer(), metricsSrv.Namespace())

			opts := registry.ProtocolOpts{
				Config:   configOpts,
				Ledger:   settlement,
				Observer: protocolMetrics,
			}

			var snapshots *storage.SnapshotStore
			journalDone := make(chan struct{})
			close(journalDone)

			if uris := cCtx.StringSlice("storage"); len(uris) > 0 {
				backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(uris)
				if err != nil {
					logger.Error("Failed to create storage backend", "err", err)
					return err
				}

				journal := storage.NewJournal(backend, cCtx.Int("journal-buffer"), logger.With("component", "journal"))
				metrics.RegisterJournal(metricsSrv.Registerer(), metricsSrv.Namespace(), journal)

				journalDone = make(chan struct{})
				go func() {
					defer close(journalDone)
					journal.Run(ctx)
				}()

				opts.Events = journal
				snapshots = storage.NewSnapshotStore(backend, logger.With("component", "snapshots"))
			}

			protocol, err := registry.NewProtocol(opts, logger)
			if err != nil {
				return err
			}

			if id := cCtx.String("restore-snapshot"); id != "" {
				if err := restoreSnapshot(ctx, protocol, snapshots, id); err != nil {
					logger.Error("Failed to restore snapshot", "err", err, "contentID", id)
					return err
				}
				logger.Info("Snapshot restored", "contentID", id)
			}

			handlerOpts := handlers.HandlerOpts{MaxSkew: cfg.SignatureMaxSkew}
			if snapshots != nil {
				handlerOpts.Snapshots = snapshots
			}
			handler := handlers.NewHandler(protocol, handlerOpts, logger)

			server, err := httpserver.New(cfg, handler, metricsSrv)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server",
				"admin", configOpts.Admin.Hex(),
				"feeBasisPoints", configOpts.FeeBasisPoints,
				"ledger", cCtx.String("ledger"))
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			cancel()
			<-journalDone
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setupLedger creates the settlement ledger. The Ethereum ledger keeps fees
// in its escrow, so the fee sink is pinned to the escrow address.
func setupLedger(ctx context.Context, cCtx *cli.Context, configOpts *registry.ConfigOpts, logger *slog.Logger) (interfaces.Ledger, error) {
	switch cCtx.String("ledger") {
	case "memory":
		memLedger := ledger.NewMemoryLedger(logger)
		for _, deposit := range cCtx.StringSlice("fund") {
			addr, amount, err := parseDeposit(deposit)
			if err != nil {
				return nil, err
			}
			memLedger.Deposit(addr, amount)
		}
		return memLedger, nil

	case "eth":
		keyFile := cCtx.String("escrow-key-file")
		if keyFile == "" {
			return nil, errors.New("escrow-key-file is required for the eth ledger")
		}
		key, err := cryptoutils.LoadKeyFile(keyFile, cCtx.String("escrow-key-passphrase"))
		if err != nil {
			return nil, err
		}

		rpcAddr := cCtx.String(flags.RpcAddrFlag.Name)
		logger.Info("Connecting to Ethereum RPC", "address", rpcAddr)
		client, err := ethclient.Dial(rpcAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to dial RPC: %w", err)
		}

		chainID, err := client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get chain id: %w", err)
		}
		auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
		if err != nil {
			return nil, err
		}

		ethLedger := ledger.NewEthLedger(client, logger)
		ethLedger.SetTransactOpts(auth)
		ethLedger.SetMineTimeout(cCtx.Duration("settle-timeout"))

		switch configOpts.FeeSink {
		case interfaces.Address{}:
			configOpts.FeeSink = auth.From
		case auth.From:
		default:
			return nil, fmt.Errorf("fee sink %s must be the escrow %s with the eth ledger", configOpts.FeeSink.Hex(), auth.From.Hex())
		}
		return ethLedger, nil

	default:
		return nil, fmt.Errorf("invalid ledger: %s", cCtx.String("ledger"))
	}
}

func restoreSnapshot(ctx context.Context, protocol *registry.Protocol, snapshots *storage.SnapshotStore, hexID string) error {
	if snapshots == nil {
		return errors.New("restoring a snapshot requires --storage")
	}
	id, err := interfaces.NewContentIDFromHex(hexID)
	if err != nil {
		return err
	}
	state, err := snapshots.Load(ctx, id)
	if err != nil {
		return err
	}
	return protocol.Restore(state)
}
