package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/brainy/internal/authctl"
	"github.com/dmitrijs2005/brainy/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := authctl.NewRunner(cfg, os.Stdout).Run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}

}
