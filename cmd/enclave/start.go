package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/benhaq/sui-nautilus/internal/enclave"
	"github.com/benhaq/sui-nautilus/pkg/config"
	"github.com/benhaq/sui-nautilus/pkg/fhir"
	"github.com/benhaq/sui-nautilus/pkg/identity"
	"github.com/benhaq/sui-nautilus/pkg/infra"
	"github.com/benhaq/sui-nautilus/pkg/keycache"
	"github.com/benhaq/sui-nautilus/pkg/logger"
	"github.com/benhaq/sui-nautilus/pkg/seal"
	"github.com/benhaq/sui-nautilus/pkg/seal/tibe"
	"github.com/benhaq/sui-nautilus/pkg/session"
	"github.com/benhaq/sui-nautilus/pkg/storage"
	"github.com/benhaq/sui-nautilus/pkg/types"
	"github.com/benhaq/sui-nautilus/pkg/walrus"
)

// NewStartCmd creates the start command
func NewStartCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "start",
		Short: "Start the enclave service",
		Long:  "Start the enclave with the specified configuration",
		RunE:  runEnclave,
	}

	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().StringP("wallet-password-file", "f", "", "Path to file containing the wallet key passphrase")
	cmd.Flags().Bool("debug", false, "Enable debug logging")

	return cmd
}

func runEnclave(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	passwordFile, _ := cmd.Flags().GetString("wallet-password-file")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Environment, debug)

	var passphrase string
	if passwordFile != "" {
		raw, err := os.ReadFile(passwordFile)
		if err != nil {
			return fmt.Errorf("read wallet password file: %w", err)
		}
		passphrase = strings.TrimSpace(string(raw))
	}

	walletSeed, err := identity.LoadWalletSeed(cfg.IdentityDir, cfg.WalletKeyName, passphrase)
	if err != nil {
		return fmt.Errorf("load wallet key: %w", err)
	}
	if walletSeed == nil {
		logger.Warn("no wallet key file found, generating an ephemeral wallet",
			"dir", cfg.IdentityDir, "name", cfg.WalletKeyName)
	}

	suite := tibe.NewSuite()
	material, err := identity.NewMaterial(suite, walletSeed)
	if err != nil {
		return fmt.Errorf("generate key material: %w", err)
	}
	logger.Info("identity ready",
		"enclave_address", material.Enclave.Address().String(),
		"wallet_address", material.Wallet.Address().String(),
	)

	staticURLs := make(map[types.Address]string)
	for _, addr := range cfg.ServerAddresses() {
		if url, ok := cfg.ServerURL(addr); ok {
			staticURLs[addr] = url
		}
	}
	var resolver seal.Resolver = seal.StaticResolver(staticURLs)
	if cfg.Consul != nil && cfg.Consul.Enabled {
		consulClient := infra.GetConsulClient(cfg)
		resolver = infra.NewEndpointResolver(consulClient.KV(), cfg.Consul.KVPrefix, staticURLs)
	}

	verifier, err := seal.NewVerifier(suite, cfg.ServerCommitments())
	if err != nil {
		return fmt.Errorf("parse server commitments: %w", err)
	}
	engine := seal.NewEngine(seal.EngineParams{
		Suite:    suite,
		Cache:    keycache.New(),
		Client:   seal.NewClient(cfg.ServerAddresses(), resolver, time.Duration(cfg.Seal.FetchTimeoutSecs)*time.Second),
		Verifier: verifier,
		Material: material,

		PackageID:         cfg.PackageID(),
		PolicyModule:      cfg.Seal.PolicyModule,
		WhitelistModule:   cfg.Seal.WhitelistModule,
		CertificateTTLMin: cfg.Seal.CertificateTTLMin,
	})

	var blobCache storage.Store
	if cfg.Walrus.Cache.Enabled {
		badgerStore, err := storage.NewBadgerStore(storage.BadgerConfig{
			DBPath:   cfg.Walrus.Cache.DBPath,
			Password: cfg.Walrus.Cache.Password,
		})
		if err != nil {
			return fmt.Errorf("open blob cache: %w", err)
		}
		defer badgerStore.Close()
		blobCache = badgerStore
	}
	blobs := walrus.NewClient(
		cfg.Walrus.AggregatorURL,
		time.Duration(cfg.Walrus.TimeoutSecs)*time.Second,
		cfg.Walrus.RetryAttempts,
		blobCache,
	)

	sessions := session.NewManager(time.Duration(cfg.Seal.CertificateTTLMin) * time.Minute)
	go sessions.StartCleanup(time.Minute)
	defer sessions.StopCleanup()

	var app *enclave.App
	transformer := fhir.NewOpenRouterClient(
		cfg.LLM.Endpoint, cfg.LLM.Model, 120*time.Second,
		func() (string, error) { return app.APIKey() },
	)
	app = enclave.NewApp(enclave.AppParams{
		Config:      cfg,
		Material:    material,
		Engine:      engine,
		Sessions:    sessions,
		Blobs:       blobs,
		Transformer: transformer,
	})

	hostServer := &http.Server{Addr: cfg.HostAddr, Handler: app.HostHandler()}
	publicServer := &http.Server{Addr: cfg.ServerAddr, Handler: app.PublicHandler()}

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("host server listening", "addr", cfg.HostAddr)
		if err := hostServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	go func() {
		logger.Info("public server listening", "addr", cfg.ServerAddr)
		if err := publicServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serveErr:
		logger.Error("server failed", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publicServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("public server shutdown", err)
	}
	if err := hostServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("host server shutdown", err)
	}
	return nil
}
