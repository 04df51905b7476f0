package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidyfolder/tidyfolder/pkg/analyzer"
	"github.com/tidyfolder/tidyfolder/pkg/home"
	"github.com/tidyfolder/tidyfolder/pkg/index"
	"github.com/tidyfolder/tidyfolder/pkg/indexer"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
)

func main() {
	dbPath := flag.String("db", "", "Index database path (default: <home>/index.db)")
	workers := flag.Int("workers", 8, "Number of parallel workers")
	inputFile := flag.String("input", "", "File with paths to index (one per line)")
	flag.Parse()

	if *inputFile == "" {
		fmt.Println("Usage: batch-index -input <file> [-db <path>] [-workers <n>]")
		os.Exit(1)
	}

	log := logger.WithName("batch-index")
	log.Info("Starting batch indexing")

	if *dbPath == "" {
		mgr, err := home.NewManager("")
		if err != nil {
			log.Fatalf("Failed to resolve home directory: %v", err)
		}
		*dbPath = mgr.IndexPath()
	}

	store, err := index.NewStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer store.Close()

	fileAnalyzer := analyzer.New()

	// Read input file
	file, err := os.Open(*inputFile)
	if err != nil {
		log.Fatalf("Failed to open input file: %v", err)
	}
	defer file.Close()

	// Collect all paths
	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		path := scanner.Text()
		if path != "" {
			paths = append(paths, path)
		}
	}

	total := len(paths)
	log.Infof("Indexing %d files with %d workers", total, *workers)

	// Process in parallel
	var processed int64
	var succeeded int64
	var failed int64
	var totalBytes int64
	startTime := time.Now()

	ctx := context.Background()
	pathChan := make(chan string, *workers*2)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range pathChan {
				record, err := indexer.IndexFile(ctx, path, store, fileAnalyzer)
				atomic.AddInt64(&processed, 1)
				if err != nil {
					atomic.AddInt64(&failed, 1)
				} else {
					atomic.AddInt64(&succeeded, 1)
					atomic.AddInt64(&totalBytes, record.SizeBytes)
				}

				// Progress every 100 files
				p := atomic.LoadInt64(&processed)
				if p%100 == 0 {
					elapsed := time.Since(startTime)
					rate := float64(p) / elapsed.Seconds()
					remaining := time.Duration(float64(int64(total)-p)/rate) * time.Second
					fmt.Printf("\rIndexed: %d/%d (%.1f/s) - Success: %d, Failed: %d - ETA: %v     ",
						p, total, rate, atomic.LoadInt64(&succeeded), atomic.LoadInt64(&failed), remaining.Round(time.Second))
				}
			}
		}()
	}

	// Send paths to workers
	for _, path := range paths {
		pathChan <- path
	}
	close(pathChan)

	// Wait for completion
	wg.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("\n\nCompleted in %v\n", elapsed.Round(time.Second))
	fmt.Printf("Total: %d, Success: %d, Failed: %d, Size: %.2f MB\n",
		processed, succeeded, failed, float64(totalBytes)/(1024*1024))
	fmt.Printf("Rate: %.1f files/sec\n", float64(processed)/elapsed.Seconds())
}
