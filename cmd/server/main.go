package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/workflow/internal/logging"
	"github.com/dmitrijs2005/workflow/internal/server"
	"github.com/dmitrijs2005/workflow/internal/server/config"
)

func main() {

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
