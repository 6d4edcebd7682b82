package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/ekisa-team/scribepod/internal/config"
	"github.com/ekisa-team/scribepod/internal/verify"
)

func main() {
	var (
		flagConfigPath = flag.String("config", filepath.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
		flagSchemaPath = flag.String("schema", "", "Path to schema file (embedded schema when empty)")
	)
	flag.Parse()

	_ = godotenv.Load()

	fmt.Println("Verifying scribepod dependencies...")
	fmt.Println()

	report := verify.Run(context.Background(), verify.DefaultChecks(*flagConfigPath, *flagSchemaPath, nil))
	if err := report.Write(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if !report.OK() {
		os.Exit(1)
	}
}
