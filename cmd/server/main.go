package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/mpereira/finledger/internal/server"
	"github.com/mpereira/finledger/internal/server/config"
)

func main() {
	ctx := context.Background()

	// optional .env for local development
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
