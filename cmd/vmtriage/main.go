package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"voicetriage/internal/bootstrap"
	"voicetriage/internal/config"
	"voicetriage/internal/detail"
	"voicetriage/internal/domain"
	"voicetriage/internal/ports"
	"voicetriage/internal/syncstore"
	"voicetriage/internal/view"
)

func main() {
	exitFn(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

var (
	exitFn = os.Exit

	// replaced in tests
	captureOverride ports.AudioCapture
	pollInterval    time.Duration
)

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "list":
		return handleList(args[2:], stdout, stderr)
	case "show":
		return handleShow(args[2:], stdout, stderr)
	case "watch":
		return handleWatch(args[2:], stdout, stderr)
	case "record":
		return handleRecord(args[2:], stdin, stdout, stderr)
	case "audio":
		return handleAudio(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func handleList(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	api := fs.String("api", "", "backend base URL (default from config)")
	sortKey := fs.String("sort", string(view.DefaultSortKey), "time_desc|time_asc|priority_desc|priority_asc")
	text := fs.String("filter", "", "case-insensitive text filter")
	urgency := fs.String("urgency", "", "only show this urgency")
	jsonOut := fs.Bool("json", false, "print rows as JSON")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	services, err := buildServices(*api, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if err := applyView(services.View, *sortKey, *text, *urgency); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := services.Store.Fetch(ctx); err != nil {
		fmt.Fprintf(stderr, "list failed: %v\n", err)
		return 1
	}

	rendered := services.View.Render(services.Store.Snapshot().Records)
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rendered.Rows); err != nil {
			fmt.Fprintln(stderr, "encode:", err)
			return 1
		}
		return 0
	}
	printRows(stdout, rendered.Rows)
	fmt.Fprintf(stdout, "%d of %d voicemails\n", len(rendered.Rows), rendered.Total)
	return 0
}

func handleShow(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	api := fs.String("api", "", "backend base URL (default from config)")
	jsonOut := fs.Bool("json", false, "print the detail as JSON")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "show requires <id>")
		fs.Usage()
		return 2
	}

	services, err := buildServices(*api, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := services.Store.Fetch(ctx); err != nil {
		fmt.Fprintf(stderr, "show failed: %v\n", err)
		return 1
	}

	record, err := findRecord(services.Store.Snapshot().Records, fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	d := detail.Build(record, services.DetailOptions())
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(d); err != nil {
			fmt.Fprintln(stderr, "encode:", err)
			return 1
		}
		return 0
	}
	printDetail(stdout, d)
	return 0
}

func handleWatch(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	api := fs.String("api", "", "backend base URL (default from config)")
	untilDone := fs.Bool("until-done", false, "exit once nothing is processing")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	services, err := buildServices(*api, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watch(ctx, services, *untilDone, false, stdout); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

func handleRecord(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	fs.SetOutput(stderr)
	api := fs.String("api", "", "backend base URL (default from config)")
	noWatch := fs.Bool("no-watch", false, "exit after the upload instead of waiting for triage")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	services, err := buildServices(*api, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := services.Controller.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "record failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Recording. Press Enter to stop.")

	entered := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(stdin).ReadString('\n')
		close(entered)
	}()
	select {
	case <-entered:
	case <-ctx.Done():
		_ = services.Controller.Abort()
		fmt.Fprintln(stdout, "Recording discarded.")
		return 1
	}

	result, err := services.Controller.Stop(context.Background())
	if err != nil {
		fmt.Fprintf(stderr, "upload failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Uploaded %d bytes (%s).\n", result.Bytes, result.MIMEType)
	if *noWatch {
		return 0
	}

	if err := watch(ctx, services, true, true, stdout); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

func handleAudio(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("audio", flag.ContinueOnError)
	fs.SetOutput(stderr)
	api := fs.String("api", "", "backend base URL (default from config)")
	outPath := fs.String("o", "", "write audio to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "audio requires <file_path>")
		fs.Usage()
		return 2
	}

	services, err := buildServices(*api, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	var w io.Writer = stdout
	if *outPath != "" {
		f, err := os.OpenFile(*outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			fmt.Fprintln(stderr, "open output:", err)
			return 1
		}
		defer f.Close()
		w = f
	}

	n, err := services.Backend.DownloadAudio(context.Background(), fs.Arg(0), w)
	if err != nil {
		fmt.Fprintf(stderr, "audio failed: %v\n", err)
		return 1
	}
	if *outPath != "" {
		fmt.Fprintf(stdout, "wrote %d bytes to %s\n", n, *outPath)
	}
	return 0
}

func buildServices(apiURL string, stderr io.Writer) (bootstrap.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return bootstrap.Services{}, err
	}
	if apiURL != "" {
		cfg.API.URL = strings.TrimRight(apiURL, "/")
	}
	return bootstrap.BuildWith(cfg, nil, bootstrap.Options{
		Audio:        captureOverride,
		PollInterval: pollInterval,
		LogOutput:    stderr,
	})
}

func applyView(state *view.State, sortKey, text, urgency string) error {
	key, err := view.ParseSortKey(sortKey)
	if err != nil {
		return err
	}
	if err := state.SetSort(key); err != nil {
		return err
	}
	state.SetFilter(view.Filter{Text: text, Urgency: domain.Urgency(strings.ToUpper(urgency))})
	return nil
}

// watch prints every change until ctx ends. With untilDone it returns once a
// fetch succeeds with nothing processing; requireRecords also waits for the
// collection to be non-empty.
func watch(ctx context.Context, services bootstrap.Services, untilDone, requireRecords bool, stdout io.Writer) error {
	var (
		mu       sync.Mutex
		inError  bool
		doneOnce sync.Once
	)
	done := make(chan struct{})

	services.Store.OnChange(func(snapshot syncstore.Snapshot, changes []syncstore.Change) {
		mu.Lock()
		if snapshot.State == syncstore.StateError {
			if !inError {
				fmt.Fprintf(stdout, "fetch failed, retrying: %v\n", snapshot.Err)
			}
			inError = true
			mu.Unlock()
			return
		}
		inError = false
		for _, change := range changes {
			printChange(stdout, change)
		}
		finished := untilDone && !domain.AnyProcessing(snapshot.Records) &&
			(!requireRecords || len(snapshot.Records) > 0)
		mu.Unlock()

		if finished {
			doneOnce.Do(func() { close(done) })
		}
	})

	feedCtx, cancelFeed := context.WithCancel(ctx)
	defer cancelFeed()
	services.StartChangeFeed(feedCtx)

	services.Store.Start(ctx)
	defer services.Store.Stop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func findRecord(records []domain.Voicemail, id string) (domain.Voicemail, error) {
	var matches []domain.Voicemail
	for _, record := range records {
		if record.ID == id {
			return record, nil
		}
		if strings.HasPrefix(record.ID, id) {
			matches = append(matches, record)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Voicemail{}, fmt.Errorf("voicemail %s not found", id)
	case 1:
		return matches[0], nil
	default:
		return domain.Voicemail{}, fmt.Errorf("id prefix %s is ambiguous (%d matches)", id, len(matches))
	}
}

func printRows(w io.Writer, rows []domain.Voicemail) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tURGENCY\tRECEIVED\tSUMMARY")
	for _, record := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			detail.ShortID(record.ID),
			record.Status,
			urgencyLabel(record),
			formatTime(record.CreatedAt.Time),
			detail.RowSummary(record),
		)
	}
	_ = tw.Flush()
}

func printChange(w io.Writer, change syncstore.Change) {
	if change.Record == nil {
		fmt.Fprintf(w, "%-7s %s\n", change.Type, detail.ShortID(change.ID))
		return
	}
	fmt.Fprintf(w, "%-7s %s %s %s %s\n",
		change.Type,
		detail.ShortID(change.ID),
		change.Record.Status,
		urgencyLabel(*change.Record),
		detail.RowSummary(*change.Record),
	)
}

func printDetail(w io.Writer, d detail.Detail) {
	fmt.Fprintf(w, "%s [%s]\n", d.Title, d.Status)
	fmt.Fprintf(w, "ID:        %s\n", d.ID)
	fmt.Fprintf(w, "Received:  %s\n", formatTime(d.CreatedAt))
	if d.Processing {
		fmt.Fprintln(w, detail.ProcessingLabel)
		if d.AudioURL != "" {
			fmt.Fprintf(w, "Audio:     %s\n", d.AudioURL)
		}
		return
	}
	fmt.Fprintf(w, "Priority:  %s\n", orDash(string(d.Priority)))
	fmt.Fprintf(w, "Category:  %s\n", orDash(d.Category))
	fmt.Fprintf(w, "Summary:   %s\n", d.Summary)
	for _, f := range d.Fields {
		fmt.Fprintf(w, "  %-10s %s\n", f.Label+":", f.Value)
	}
	if len(d.MissingInfo) > 0 {
		fmt.Fprintf(w, "Missing:   %s\n", strings.Join(d.MissingInfo, ", "))
	}
	if d.AudioURL != "" {
		fmt.Fprintf(w, "Audio:     %s\n", d.AudioURL)
	}
	if len(d.Transcript) > 0 {
		var b strings.Builder
		for _, seg := range d.Transcript {
			if seg.Highlight {
				b.WriteString("*" + seg.Text + "*")
				continue
			}
			b.WriteString(seg.Text)
		}
		fmt.Fprintf(w, "Transcript:\n  %s\n", b.String())
	}
	if d.Booking != nil {
		fmt.Fprintf(w, "Booking:   %s\n", d.Booking.URL)
	}
}

func urgencyLabel(record domain.Voicemail) string {
	if !record.Trusted() || record.Urgency == "" {
		return "-"
	}
	return string(record.Urgency)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Voicemail triage CLI

Usage:
  vmtriage list [--api URL] [--sort KEY] [--filter TEXT] [--urgency LEVEL] [--json]
  vmtriage show [--api URL] [--json] <id>
  vmtriage watch [--api URL] [--until-done]
  vmtriage record [--api URL] [--no-watch]
  vmtriage audio [--api URL] [-o FILE] <file_path>
`)
}
