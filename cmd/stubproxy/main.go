package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/secureproxy/secureproxy-go/pkg/logger"
	"github.com/secureproxy/secureproxy-go/proxytest"
)

func main() {
	// Parse command line flags
	listenAddr := flag.String("listen", ":8080", "Address to listen on")
	proxyKey := flag.String("proxy-key", "", "Accepted proxy key (empty accepts any)")
	secretKey := flag.String("secret-key", "", "Shared secret for request signature verification")
	tokenTTL := flag.Duration("token-ttl", time.Hour, "Lifetime of issued bearer tokens")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Set up logger
	logger := logger.NewLogger(*debug)
	defer logger.Sync()

	logger.Info("secureproxy stub starting",
		zap.String("listen", *listenAddr),
		zap.Duration("token_ttl", *tokenTTL),
		zap.Bool("debug", *debug),
	)

	srv, err := proxytest.New(proxytest.Config{
		ListenAddr: *listenAddr,
		ProxyKey:   *proxyKey,
		SecretKey:  *secretKey,
		TokenTTL:   *tokenTTL,
	}, logger)
	if err != nil {
		logger.Fatal("failed to start stub", zap.Error(err))
	}
	defer srv.Close()

	logger.Info("stub ready", zap.String("url", srv.URL()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
}
