// Command framescout searches a video for moments matching a text query by
// asking a local vision model about one frame per second.
//
// With no flags it runs the agent: the local HTTP API plus the tray. With
// -video and -query it runs one search in the foreground.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/heimdex/framescout/internal/config"
)

func main() {
	opts := cliOptions{}
	flag.StringVar(&opts.video, "video", "", "video file to search (runs one search and exits)")
	flag.StringVar(&opts.query, "query", "", "what to look for, in any language")
	flag.IntVar(&opts.threshold, "threshold", -1, "match on a 0-100 confidence score at or above this value instead of yes/no")
	flag.StringVar(&opts.lang, "lang", "", "language of the query, e.g. zh-TW (default: configured source language)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("framescout %s (%s, built %s)\n", config.Version, config.GitCommit, config.BuildTime)
		return
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("fatal error: failed to load config: %v", err)
	}

	if opts.video != "" || opts.query != "" {
		code, err := runCLI(cfg, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "framescout: %v\n", err)
		}
		os.Exit(code)
	}

	if err := runAgent(cfg); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}
