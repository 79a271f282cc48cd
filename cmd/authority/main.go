package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/aussiebroadwan/authority/internal/authority/app"
)

func main() {
	cfg, err := app.LoadConfig(os.Args[1:])
	if errors.Is(err, app.ErrHelp) {
		fmt.Fprintf(os.Stderr, "Usage: authority [flags]\n\n%s", app.Usage())
		return
	}
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
