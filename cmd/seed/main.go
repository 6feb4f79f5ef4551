package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gustycube/pingscope/internal/ingest"
)

func main() {
	var file string
	var addr string
	var key string
	flag.StringVar(&file, "log", "", "path to ping log file")
	flag.StringVar(&addr, "redis", "127.0.0.1:6379", "redis addr")
	flag.StringVar(&key, "key", "pingscope:records", "redis queue key")
	flag.Parse()
	if file == "" {
		fmt.Fprintln(os.Stderr, "missing -log")
		os.Exit(1)
	}

	ctx := context.Background()
	q, err := ingest.NewRedis(ctx, addr, key, 0, 10*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "redis:", err)
		os.Exit(1)
	}
	defer q.Close()

	f, err := os.Open(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()

	rd := ingest.NewReader(f)
	n := 0
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "skipping:", err)
			continue
		}
		if err := q.Seed(ctx, ingest.FormatRecord(rec)); err != nil {
			fmt.Fprintln(os.Stderr, "seed:", err)
			os.Exit(1)
		}
		n++
	}
	fmt.Println("seeded", n, "records into", key)
}
