package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/app"
	"github.com/vladislavdragonenkov/crm/internal/seed"
)

const defaultTimeout = time.Minute

func main() {
	var (
		configPath string
		dataPath   string
		orders     int
	)
	flag.StringVar(&configPath, "config", "", "path to YAML config (env CRM_* overrides it)")
	flag.StringVar(&dataPath, "data", "", "JSON dataset with customers and products (default: built-in demo set)")
	flag.IntVar(&orders, "orders", seed.DefaultOrders, "number of random orders to create")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		fail("load config: %v", err)
	}

	ds := seed.DefaultDataset()
	if dataPath != "" {
		f, err := os.Open(dataPath)
		if err != nil {
			fail("open dataset: %v", err)
		}
		ds, err = seed.ReadDataset(f)
		_ = f.Close()
		if err != nil {
			fail("%v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	res, err := app.Seed(ctx, cfg, ds, orders)
	if err != nil {
		fail("seed failed: %v", err)
	}
	fmt.Printf("seed ok: customers=%d (created %d) products=%d (created %d) orders=%d\n",
		len(res.Customers), res.CustomersCreated, len(res.Products), res.ProductsCreated, len(res.Orders))
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
