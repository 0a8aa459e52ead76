package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/heimdex/framescout/internal/config"
	"github.com/heimdex/framescout/internal/history"
	"github.com/heimdex/framescout/internal/logging"
	"github.com/heimdex/framescout/internal/scan"
	"github.com/heimdex/framescout/internal/search"
)

type cliOptions struct {
	video     string
	query     string
	threshold int
	lang      string
}

// policy picks yes/no matching unless a threshold was given.
func (o cliOptions) policy() (scan.MatchPolicy, error) {
	if o.threshold < 0 {
		return scan.BooleanPolicy(), nil
	}
	return scan.ScoredPolicy(o.threshold)
}

// runCLI runs one search in the foreground and returns the exit code. The
// first interrupt stops the scan cooperatively; a second one aborts.
func runCLI(cfg config.Config, opts cliOptions) (int, error) {
	if strings.TrimSpace(opts.video) == "" || strings.TrimSpace(opts.query) == "" {
		return 2, errors.New("both -video and -query are required")
	}
	policy, err := opts.policy()
	if err != nil {
		return 2, err
	}

	logger := logging.NewLogger(cfg.LogLevel(), logging.FormatText)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return 1, err
	}
	defer closeRepo()

	answerer, err := newAnswerer(cfg, logger)
	if err != nil {
		return 1, fmt.Errorf("failed to create inference client: %w", err)
	}
	svc := newSearchService(cfg, repo, answerer, logger)

	finished := make(chan search.Notification, 1)
	svc.Subscribe(search.PublisherFunc(func(n search.Notification) {
		switch n.Type {
		case search.NotifyMatch:
			fmt.Fprintln(os.Stdout, formatMatch(n))
		case search.NotifyFinished:
			select {
			case finished <- n:
			default:
			}
		}
	}))

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		svc.Run(ctx)
	}()

	sess, err := svc.Start(ctx, search.Request{
		VideoPath:  opts.video,
		Query:      opts.query,
		SourceLang: opts.lang,
		Policy:     policy,
	})
	if err != nil {
		cancel()
		<-runDone
		return 1, err
	}
	fmt.Fprintf(os.Stderr, "searching %s for %q (%s)\n", logging.SanitizePath(sess.VideoPath), sess.Query, policy)
	if !strings.Contains(sess.Prompt, sess.Query) {
		fmt.Fprintf(os.Stderr, "prompt: %s\n", sess.Prompt)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	final := waitForFinish(finished, sigCh, svc.Stop, cancel, os.Stderr)

	cancel()
	<-runDone

	fmt.Fprintln(os.Stdout, formatSummary(final))
	if final.Status == history.StatusFailed {
		return 1, errors.New(final.Error)
	}
	return 0, nil
}

func waitForFinish(finished <-chan search.Notification, sigCh <-chan os.Signal, stop func() bool, abort func(), w io.Writer) search.Notification {
	stopping := false
	for {
		select {
		case n := <-finished:
			return n
		case <-sigCh:
			if stopping {
				fmt.Fprintln(w, "aborting")
				abort()
				continue
			}
			stopping = true
			if stop() {
				fmt.Fprintln(w, "stopping after the current frame (Ctrl-C again to abort)")
			}
		}
	}
}

func formatMatch(n search.Notification) string {
	line := n.Timestamp
	if line == "" {
		line = search.FormatTimestamp(n.Second)
	}
	if n.Score != nil {
		line += fmt.Sprintf("  score %d", *n.Score)
	}
	return line
}

func formatSummary(n search.Notification) string {
	var b strings.Builder
	s := n.Summary
	if s == nil {
		s = &search.Summary{}
	}

	b.WriteString(english.Plural(s.Matches, "match", "matches"))
	elapsed := (time.Duration(s.ElapsedMs) * time.Millisecond).Round(100 * time.Millisecond)
	fmt.Fprintf(&b, " in %s, %s frames sampled", elapsed, humanize.Comma(int64(s.Samples)))
	if s.FrameErrors > 0 {
		fmt.Fprintf(&b, ", %s skipped", humanize.Comma(int64(s.FrameErrors)))
	}
	switch n.Status {
	case history.StatusCancelled:
		b.WriteString(" (cancelled)")
	case history.StatusFailed:
		b.WriteString(" (failed: " + n.Error + ")")
	}
	return b.String()
}
