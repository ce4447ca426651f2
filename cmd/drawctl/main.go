// drawctl - command line client for the Draw Labs gallery
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ashureev/draw-labs/internal/client"
	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/ashureev/draw-labs/internal/prompt"
	"github.com/ashureev/draw-labs/internal/session"
	"github.com/joho/godotenv"
)

const usage = `usage: drawctl [-server URL] <command> [flags]

commands:
  list    [-limit N] [-save DIR]                       show recent drawings
  submit  -prompt TEXT [-type today|random] [-time S] FILE.png
  today   [-tz ZONE] [-date YYYY-MM-DD]                print the daily prompt
  watch                                                follow new drawings
`

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "drawctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("drawctl", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	server := global.String("server", envOr("DRAW_SERVER", "http://localhost:8080"), "API base URL")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	transport := client.NewHTTPTransport(*server, nil)
	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "list":
		return runList(ctx, transport, rest, out)
	case "submit":
		return runSubmit(ctx, transport, rest, out)
	case "today":
		return runToday(rest, out)
	case "watch":
		return runWatch(ctx, transport, out)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runList(ctx context.Context, t client.Transport, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	limit := fs.Int("limit", domain.DefaultListLimit, "number of drawings (1-50)")
	save := fs.String("save", "", "directory to download images into")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g := client.NewGallery(t, *limit, nil)
	if err := g.Refresh(ctx); err != nil {
		return fmt.Errorf("list drawings: %s", domain.UserMessage(err))
	}
	items := g.Items()
	printDrawings(out, items)
	if *save == "" {
		return nil
	}

	if err := os.MkdirAll(*save, 0o755); err != nil {
		return fmt.Errorf("create save directory: %w", err)
	}
	thumbs, err := g.LoadImages(ctx, items)
	if err != nil {
		slog.Warn("Some images could not be downloaded", "error", err)
	}
	for _, th := range thumbs {
		if th.Broken {
			fmt.Fprintf(out, "drawing %d: image unavailable\n", th.Drawing.ID)
			continue
		}
		name := filepath.Join(*save, fmt.Sprintf("drawing-%d%s", th.Drawing.ID, imageExt(th.Data)))
		if err := os.WriteFile(name, th.Data, 0o644); err != nil {
			return fmt.Errorf("save drawing %d: %w", th.Drawing.ID, err)
		}
	}
	return nil
}

func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".bin"
	}
}

// fileSurface submits an existing PNG as the session raster.
type fileSurface []byte

func (f fileSurface) EncodePNG() ([]byte, error) {
	if len(f) == 0 {
		return nil, &domain.EncodingError{Reason: "empty file"}
	}
	return f, nil
}

func runSubmit(ctx context.Context, t client.Transport, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	text := fs.String("prompt", "", "prompt the drawing answers")
	kind := fs.String("type", string(domain.PromptRandom), "prompt source: today or random")
	seconds := fs.Int("time", domain.DefaultTimerPreset, "time limit in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("submit: expected exactly one PNG file")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read drawing: %w", err)
	}

	p := client.NewPipeline(t, client.PipelineOptions{})
	snap := session.Snapshot{
		Mode:         domain.ModePractice,
		Prompt:       *text,
		PromptSource: domain.PromptType(*kind),
		TimerSeconds: *seconds,
	}
	created, err := p.Submit(ctx, snap, fileSurface(data))
	if err != nil {
		var v *domain.ValidationError
		if errors.As(err, &v) {
			for field, msgs := range v.Fields {
				for _, m := range msgs {
					fmt.Fprintf(out, "  %s: %s\n", field, m)
				}
			}
		}
		return fmt.Errorf("submit: %s", p.Status().Reason)
	}
	fmt.Fprintf(out, "created drawing %d\n%s\n", created.ID, created.ImageURL)
	return nil
}

func runToday(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("today", flag.ContinueOnError)
	tzName := fs.String("tz", envOr("PROMPT_TZ", "Asia/Tokyo"), "time zone the calendar date is taken in")
	dateStr := fs.String("date", "", "date to use instead of today (YYYY-MM-DD)")
	file := fs.String("prompts", os.Getenv("PROMPTS_FILE"), "YAML prompt catalog")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tz, err := time.LoadLocation(*tzName)
	if err != nil {
		return fmt.Errorf("load time zone: %w", err)
	}
	date := time.Now().In(tz)
	if *dateStr != "" {
		if date, err = time.ParseInLocation(time.DateOnly, *dateStr, tz); err != nil {
			return fmt.Errorf("parse date: %w", err)
		}
	}

	catalog, err := prompt.Load(*file)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\t%s\n", date.Format(time.DateOnly), catalog.ForDate(date))
	return nil
}

func runWatch(ctx context.Context, t *client.HTTPTransport, out io.Writer) error {
	g := client.NewGallery(t, 1, nil)
	var last int64
	if err := g.Refresh(ctx); err == nil {
		if items := g.Items(); len(items) > 0 {
			last = items[0].ID
		}
	}

	fmt.Fprintln(out, "watching for new drawings, Ctrl-C to stop")
	errCh := make(chan error, 1)
	go func() { errCh <- g.Watch(ctx, client.LiveURL(t.BaseURL())) }()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			return err
		case <-ticker.C:
			items := g.Items()
			if len(items) > 0 && items[0].ID != last {
				last = items[0].ID
				printDrawings(out, items[:1])
			}
		}
	}
}

func printDrawings(out io.Writer, items []domain.DrawingView) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROMPT\tTYPE\tLIMIT\tCREATED\tIMAGE")
	for _, d := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%ds\t%s\t%s\n",
			d.ID, d.Prompt, d.PromptType, d.TimeLimitSeconds,
			d.CreatedAt.Local().Format(time.DateTime), d.ImageURL)
	}
	_ = w.Flush()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
