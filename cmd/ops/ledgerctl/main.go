// ledgerctl inspects and resets the failure ledger.
//
// Usage:
//
//	ledgerctl show   print the ledgered fetch keys
//	ledgerctl clear  empty the ledger so the next sweep retries everything
package main

import (
	"fmt"
	"log/slog"
	"os"

	"gridpulse/internal/config"
	"gridpulse/internal/ledger"
	"gridpulse/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ledgerctl <show|clear>")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	l := ledger.New(store.LedgerPath(cfg.DataDir), logger)
	if err := l.Load(); err != nil {
		logger.Error("loading failure ledger failed", "error", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "show":
		entries := l.Entries()
		if len(entries) == 0 {
			fmt.Println("ledger is empty")
			return
		}
		for _, key := range entries {
			fmt.Println(key.String())
		}
		fmt.Printf("%d ledgered keys\n", len(entries))

	case "clear":
		count := l.Len()
		if err := l.Clear(); err != nil {
			logger.Error("clearing failure ledger failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("cleared %d ledgered keys\n", count)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\nusage: ledgerctl <show|clear>\n", os.Args[1])
		os.Exit(2)
	}
}
