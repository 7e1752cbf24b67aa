// convert-cli drives the conversion pipeline end to end from the command
// line: upload the given files, run the chosen tool, print the download URL.
//
// Usage:
//
//	convert-cli -tool merge chapter-1.pdf chapter-2.pdf
//	convert-cli -tool compress -level high photo.jpg
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ndthanh/convert-be/pkg/client"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	defaultServer := os.Getenv("CONVERT_API_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	server := flag.String("server", defaultServer, "Base URL of the conversion API")
	tool := flag.String("tool", "", "Tool type: merge, compress, reduce, jpg-to-pdf")
	level := flag.String("level", "", "Compression level for compress/reduce: low, medium, high")
	pollInterval := flag.Duration("poll-interval", client.DefaultPollInterval, "Status poll interval")
	pollAttempts := flag.Int("poll-attempts", client.DefaultMaxPollAttempts, "Maximum status poll attempts")
	flag.Parse()

	if *tool == "" {
		return fmt.Errorf("missing -tool flag")
	}
	if flag.NArg() == 0 {
		return fmt.Errorf("no input files given")
	}

	api, err := client.NewClient(*server)
	if err != nil {
		return err
	}

	pipeline := client.NewPipeline(api, client.Options{
		PollInterval:    *pollInterval,
		MaxPollAttempts: *pollAttempts,
		OnTransition: func(s client.State) {
			fmt.Printf("[%3d%%] %s\n", s.Progress, s.Step)
		},
	})

	files := make([]client.File, 0, flag.NArg())
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, client.File{
			Name: filepath.Base(path),
			Data: data,
		})
	}

	if err := pipeline.AddFiles(files...); err != nil {
		return err
	}

	if !pipeline.CanSubmit(*tool) {
		return fmt.Errorf("cannot submit: tool %q with %d file(s)", *tool, len(files))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	if err := pipeline.StartProcessing(ctx, *tool, *level); err != nil {
		return err
	}

	state := pipeline.State()
	fmt.Printf("\ndone in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("file:     %s\n", state.ResultFileName)
	fmt.Printf("download: %s\n", state.DownloadURL)
	return nil
}
