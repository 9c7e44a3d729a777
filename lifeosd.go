package main

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	cli "github.com/lifeos/lifeosd/cmd/lifeosd"
	"github.com/lifeos/lifeosd/internal/config"
)

//go:embed etc/lifeosd.yaml
var embeddedConfig []byte

func main() {
	// Load .env before config so ${VAR} references in the YAML resolve.
	_ = godotenv.Load()

	var (
		c   config.Config
		err error
	)
	if path := os.Getenv("LIFEOSD_CONFIG"); path != "" {
		c, err = config.LoadFromFile(path)
	} else {
		c, err = config.LoadFromBytes(embeddedConfig)
	}
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cli.SetupRootCmd(&c).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
