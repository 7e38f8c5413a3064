package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperloop/hyperloop-go/src/hyperloop/hub"
	"github.com/jmalloc/twelf/src/twelf"
)

func main() {
	listen := flag.String("listen", ":9595", "address to accept client connections on")
	version := flag.String("version", hub.DefaultVersion, "version advertised to clients")
	ping := flag.Duration("ping", hub.DefaultPingInterval, "keepalive ping interval")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := &twelf.StandardLogger{CaptureDebug: *verbose}

	h := hub.New(
		hub.Logger(logger),
		hub.Version(*version),
		hub.PingInterval(*ping),
	)

	server := &http.Server{
		Addr:    *listen,
		Handler: h,
	}

	go func() {
		logger.Log("listening on %s", *listen)

		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Log("listen: %s", err)
			h.Stop()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Log("received %s, stopping", s)
		h.GracefulStop()
	case <-h.Done():
	}

	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		h.Stop()
		<-h.Done()
	}

	server.Close()

	if err := h.Err(); err != nil {
		logger.Log("hub stopped: %s", err)
		os.Exit(1)
	}
}
