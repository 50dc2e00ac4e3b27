// Command uploader sends local files to the media bucket through the
// authorization broker, switching to multipart transfers for large files.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/uniedit/mediaupload/internal/app"
	"github.com/uniedit/mediaupload/internal/domain/upload"
	"github.com/uniedit/mediaupload/internal/infra/config"
	"github.com/uniedit/mediaupload/internal/model"
	"github.com/uniedit/mediaupload/internal/utils/filetype"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("uploader: %v", err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("uploader", pflag.ExitOnError)
	flags.String("broker", "", "broker base URL (e.g. http://localhost:8080/api)")
	flags.Int("concurrency", 0, "parts transferred in parallel per multipart upload")
	flags.Int("max-uploads", 0, "files uploaded at the same time, 0 for unlimited")
	flags.Bool("abort-on-failure", false, "abort the multipart session when a part fails")
	allowAny := flags.Bool("allow-any", false, "accept files of any detected type")
	list := flags.Bool("list", false, "list stored media and exit")
	metricsAddr := flags.String("metrics-addr", "", "serve upload metrics on this address while running (e.g. :9100)")
	_ = flags.Parse(os.Args[1:])

	v := viper.New()
	for key, flag := range map[string]string{
		"broker.base_url":               "broker",
		"upload.part_concurrency":       "concurrency",
		"upload.max_concurrent_uploads": "max-uploads",
		"upload.abort_on_failure":       "abort-on-failure",
	} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	cfg, err := config.LoadWith(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	printer := newPrinter()
	deps, cleanup, err := app.InitializeUploader(cfg, printer)
	if err != nil {
		return fmt.Errorf("init uploader: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *list {
		return listMedia(ctx, deps)
	}

	if *metricsAddr != "" {
		srv := serveMetrics(*metricsAddr, deps)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	paths := flags.Args()
	if len(paths) == 0 {
		return errors.New("no files given")
	}

	accepted := filetype.AcceptedImageTypes
	if *allowAny {
		accepted = nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, path := range paths {
		file, err := filetype.Open(path, accepted)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", path, err)
			mu.Lock()
			failed++
			mu.Unlock()
			continue
		}

		fmt.Printf("%s (%s, %s, %s)\n",
			file.Name(),
			file.ContentType(),
			units.HumanSize(float64(file.Size())),
			deps.Uploads.Strategy(file.Size()),
		)

		results := deps.Uploads.Submit(ctx, file)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer file.Close()
			res := <-results
			if res.Err != nil {
				fmt.Fprintf(os.Stderr, "%s: %s\n", file.Name(), upload.Message(res.Err))
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := deps.Uploads.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if summary, err := deps.Metrics.UploadSummary(); err == nil {
		fmt.Printf("%d succeeded, %d failed, %s sent in %d parts\n",
			summary.Succeeded, summary.Failed, units.HumanSize(float64(summary.Bytes)), summary.Parts)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(paths))
	}
	return nil
}

func serveMetrics(addr string, deps *app.UploaderDependencies) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", deps.Metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.ZapLogger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}

func listMedia(ctx context.Context, deps *app.UploaderDependencies) error {
	if err := deps.Uploads.Refresh(ctx); err != nil {
		return err
	}
	for _, u := range deps.Registry.List() {
		fmt.Printf("%-10s %10s  %s\n", u.Status, units.HumanSize(float64(u.Size)), u.URL)
	}
	return nil
}

// printer reports upload notifications on stdout.
type printer struct {
	mu    sync.Mutex
	names map[string]string
}

func newPrinter() *printer {
	return &printer{names: make(map[string]string)}
}

func (p *printer) OnOptimisticallyAdded(u *model.LogicalUpload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names[u.ID] = u.FileName
	fmt.Printf("  %s: started as %s\n", u.FileName, u.Key)
}

func (p *printer) OnProgress(uploadID string, percentage int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Printf("  %s: %3d%%\n", p.name(uploadID), percentage)
}

func (p *printer) OnSucceeded(uploadID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Printf("  %s: done\n", p.name(uploadID))
}

func (p *printer) OnFailed(uploadID string, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Printf("  %s: failed: %s\n", p.name(uploadID), message)
}

func (p *printer) name(uploadID string) string {
	if n, ok := p.names[uploadID]; ok {
		return n
	}
	return uploadID
}

var _ upload.Observer = (*printer)(nil)
