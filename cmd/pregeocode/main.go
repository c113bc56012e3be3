// Package main geocodes an address roster once so it can be ranked offline.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"go.ngs.io/nearest-api/internal/adapter/nominatim"
	"go.ngs.io/nearest-api/internal/adapter/store/jsonfile"
	"go.ngs.io/nearest-api/internal/adapter/table"
	"go.ngs.io/nearest-api/internal/config"
	"go.ngs.io/nearest-api/internal/geocode"
	"go.ngs.io/nearest-api/internal/usecase"
)

func main() {
	var (
		inPath     string
		outPath    string
		nameCol    string
		addressCol string
		suffix     string
		delay      time.Duration
		cachePath  string
		configPath string
	)

	flag.StringVar(&inPath, "in", "", "Path or URL to the input CSV/XLSX roster")
	flag.StringVar(&outPath, "out", "", "Output CSV path")
	flag.StringVar(&nameCol, "name-col", "nama", "Name column")
	flag.StringVar(&addressCol, "address-col", "alamat", "Address column")
	flag.StringVar(&suffix, "suffix", usecase.DefaultAddressSuffix, "Suffix appended to addresses that do not already contain it")
	flag.DurationVar(&delay, "delay", 0, "Minimum delay between geocoder requests (default: geocode.min_delay from config)")
	flag.StringVar(&cachePath, "cache", "", "Geocode cache file (default: cache.path from config)")
	flag.StringVar(&configPath, "config", "", "Optional YAML config file")
	flag.Parse()

	if inPath == "" || outPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: pregeocode -in roster.csv -out roster_with_latlon.csv [options]")
		os.Exit(2)
	}

	v, err := config.Init(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := config.InitLogger(v.GetString("log.level")); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	settings, err := config.Geocode(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := overrideDelay(&settings.Options, explicitFlags(flag.CommandLine), delay); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	if cachePath == "" {
		cachePath = v.GetString("cache.path")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tbl, err := loadTable(ctx, inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load roster: %v\n", err)
		os.Exit(1)
	}

	cache := jsonfile.NewStore(cachePath, log.WithField("component", "cache"))
	if err := cache.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load cache: %v\n", err)
		os.Exit(1)
	}
	log.Infof("action: load_cache | result: success | path: %s | entries: %d", cache.Path(), cache.Len())

	geocoder := nominatim.NewClient(settings.BaseURL, settings.UserAgent, settings.Timeout)
	client := geocode.NewClient(geocoder, cache, settings.Options, log.WithField("component", "geocode"))
	uc := usecase.NewPregeocodeUseCase(client, log.WithField("component", "pregeocode"))

	report, runErr := uc.Execute(ctx, usecase.PregeocodeRequest{
		Table:         tbl,
		NameColumn:    nameCol,
		AddressColumn: addressCol,
		Suffix:        suffix,
	})
	if runErr != nil && tbl.Index(usecase.ColumnGeocodeOK) < 0 {
		// Nothing was resolved; leave no output behind.
		fmt.Fprintf(os.Stderr, "%v\n", runErr)
		os.Exit(1)
	}

	if err := writeTable(outPath, tbl); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Unique addresses: %d (cache hits: %d)\n", report.Unique, report.CacheHits)
	fmt.Printf("Succeeded: %d | Failed: %d\n", report.Succeeded, report.Failed)
	fmt.Printf("Saved: %s\n", outPath)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted; rerun to resume from the cache")
		} else {
			fmt.Fprintf(os.Stderr, "%v\n", runErr)
		}
		os.Exit(1)
	}
}

// explicitFlags returns the names of flags given on the command line.
func explicitFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// overrideDelay applies -delay only when it was given, so the configured
// geocode.min_delay stays in effect otherwise.
func overrideDelay(opts *geocode.Options, set map[string]bool, delay time.Duration) error {
	if !set["delay"] {
		return nil
	}
	if delay < 0 {
		return fmt.Errorf("-delay must not be negative")
	}
	opts.MinDelay = delay
	return nil
}

func loadTable(ctx context.Context, pathOrURL string) (*table.Table, error) {
	format, err := table.DetectFormat(pathOrURL)
	if err != nil {
		return nil, err
	}
	data, err := table.LoadBytes(ctx, pathOrURL)
	if err != nil {
		return nil, err
	}
	return table.Read(bytes.NewReader(data), format)
}

func writeTable(path string, tbl *table.Table) (err error) {
	//nolint:gosec // G304: Output path is supplied by the operator.
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return tbl.WriteCSV(f)
}
