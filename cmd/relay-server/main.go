package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/opd-ai/threshold-relay/config"
	"github.com/opd-ai/threshold-relay/crypto"
	"github.com/opd-ai/threshold-relay/noise"
	"github.com/opd-ai/threshold-relay/relay"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relay-server",
	Short: "Session relay for threshold-signing ceremonies",
}

var (
	flagForce  bool
	flagBind   string
	flagConfig string
)

func init() {
	generateCmd := &cobra.Command{
		Use:   "generate-keypair <file>",
		Short: "Generate a Noise static keypair and write it PEM-encoded to file",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerateKeypair,
	}
	generateCmd.Flags().BoolVar(&flagForce, "force", false, "overwrite file if it already exists")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Run the relay server",
		RunE:  runStart,
	}
	startCmd.Flags().StringVar(&flagBind, "bind", "", "address to listen on (overrides config)")
	startCmd.Flags().StringVar(&flagConfig, "config", "/etc/threshold-relay/relay.yaml", "path to relay config file")

	rootCmd.AddCommand(generateCmd, startCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("relay-server: exiting")
	}
}

func runGenerateKeypair(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !flagForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("relay-server: %s already exists, use --force to overwrite", path)
		}
	}
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("relay-server: generate keypair: %w", err)
	}
	if err := os.WriteFile(path, noise.EncodeKeypairPEM(kp), 0o600); err != nil {
		return fmt.Errorf("relay-server: write keypair: %w", err)
	}
	logrus.WithFields(logrus.Fields{"path": path}).Info("relay-server: wrote new keypair")
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadRelayConfig(flagConfig)
	if err != nil {
		return err
	}
	if flagBind != "" {
		cfg.Bind = flagBind
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}

	if _, err := os.Stat(cfg.KeypairPEM); err == nil {
		pem, err := os.ReadFile(cfg.KeypairPEM)
		if err != nil {
			return fmt.Errorf("relay-server: read keypair: %w", err)
		}
		if _, err := noise.DecodeKeypairPEM(pem); err != nil {
			return fmt.Errorf("relay-server: decode keypair: %w", err)
		}
	} else {
		logrus.WithFields(logrus.Fields{"path": cfg.KeypairPEM}).Warn("relay-server: no keypair on disk, run generate-keypair first")
	}

	server := relay.NewServer(cfg.Session.IntervalDuration(), cfg.Session.TimeoutDuration())
	server.Run()
	defer server.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/", server.ServeHTTP)
	httpServer := &http.Server{Addr: cfg.Bind, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{"bind": cfg.Bind}).Info("relay-server: listening")
		errCh <- httpServer.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("relay-server: serve: %w", err)
		}
	case <-sig:
		logrus.Info("relay-server: shutting down")
	}

	return httpServer.Close()
}
