package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperloop/hyperloop-go/src/hyperloop"
	"github.com/hyperloop/hyperloop-go/src/hyperloop/cache"
	"github.com/hyperloop/hyperloop-go/src/hyperloop/ws"
	"github.com/jmalloc/twelf/src/twelf"
)

func main() {
	url := flag.String("hub", "ws://localhost:9595", "hub to connect to")
	identity := flag.String("identity", "echo-demo", "identity declared to the hub")
	cachePath := flag.String("cache", "", "cache database path (defaults to the temp dir)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := &twelf.StandardLogger{CaptureDebug: *verbose}

	if err := run(*url, *identity, *cachePath, logger); err != nil {
		logger.Log("%s", err)
		os.Exit(1)
	}
}

func run(url, identity, cachePath string, logger twelf.Logger) error {
	d := ws.Dialer{Identity: identity}

	client, err := d.Dial(
		context.Background(),
		url,
		hyperloop.Config{Logger: logger},
	)
	if err != nil {
		return err
	}
	defer client.Stop()

	client.OnBroadcast(func(payload json.RawMessage) {
		logger.Debug("broadcast: %s", payload)
	})

	err = client.Register(
		"echo",
		hyperloop.ArgsInfo{"message": "the string to return"},
		func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
			var args struct {
				Message string `json:"message"`
			}
			if err := req.Bind(&args); err != nil {
				return nil, err
			}

			return map[string]string{"message": strings.ToUpper(args.Message)}, nil
		},
	)
	if err != nil {
		return err
	}

	if cachePath == "" {
		cachePath = filepath.Join(os.TempDir(), "hyperloop-demo.db")
	}

	store, err := cache.OpenBolt(cachePath)
	if err != nil {
		return err
	}
	defer store.Close()

	cached := cache.New(
		client,
		store,
		cache.RuleSet{
			"echo": {cache.NewRule(`.`, time.Minute)},
		},
		cache.Logger(logger),
	)
	defer cached.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fns, err := client.Functions(ctx)
	if err != nil {
		return err
	}

	for _, fn := range fns {
		logger.Log("directory: %s %v", fn.ID, fn.Args)
	}

	for i := 0; i < 3; i++ {
		res, err := cached.Call(ctx, "echo", map[string]string{"message": "hello, hyperloop"})
		if err != nil {
			return err
		}

		fmt.Printf("echo #%d (hit=%v): %s\n", i+1, res.Hit, res.Value)
	}

	stats := cached.Stats()
	logger.Log(
		"cache: %d hits, %d misses, %d stored",
		stats.Hits,
		stats.Misses,
		stats.Stored,
	)

	return nil
}
