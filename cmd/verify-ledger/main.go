package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"

	"zkv-router/internal/config"
	"zkv-router/internal/ledger"
)

func main() {
	configPath := flag.String("config", "", "config file")
	limit := flag.Int("limit", 5, "recent submissions to show")
	flag.Parse()

	fmt.Println("🔍 Verifying submission ledger...")
	fmt.Println("============================================================")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	fmt.Printf("📋 Driver: %s\n", cfg.Ledger.Driver)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	l, err := ledger.Open(cfg.Ledger, logrus.NewEntry(logger))
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := l.List(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to read ledger: %v", err)
	}
	fmt.Printf("✅ Ledger readable, %d recent submission(s)\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s  %s  %s\n", e.SubmittedAt.Format(time.RFC3339), e.TxHash, e.Endpoint)
	}
}
