// Command timing-report normalizes timing files and charts verse duration
// against highlight duration.
//
// Usage:
//
//	timing-report -dir timings/ -surah 1 -reciter alafasy -out reports/
//	timing-report -dir timings/ -all -out reports/
//	timing-report -file fatiha.json -out reports/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tilawah/versesync/internal/config"
	"github.com/tilawah/versesync/internal/fsutil"
	"github.com/tilawah/versesync/internal/highlight"
	"github.com/tilawah/versesync/internal/report"
	"github.com/tilawah/versesync/internal/timing"
	"github.com/tilawah/versesync/internal/timingsource"
	"github.com/tilawah/versesync/internal/units"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON config file (display bands)")
	dir := flag.String("dir", "", "Directory of <surah>_<reciter>.json timing files")
	file := flag.String("file", "", "Single timing file")
	surah := flag.Int("surah", 1, "Surah number (with -dir)")
	reciter := flag.String("reciter", "alafasy", "Reciter id (with -dir)")
	all := flag.Bool("all", false, "Report every timing file in -dir")
	out := flag.String("out", "reports", "Output directory")
	flag.Parse()

	cfg := config.EmptyConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	bands := highlight.BandsFromConfig(cfg)
	fsys := fsutil.OSFileSystem{}
	limit := cfg.GetMaxPayloadBytes()

	type job struct {
		key timing.Key
		src timingsource.Source
	}
	var jobs []job
	switch {
	case *file != "":
		key := keyFromFileName(*file)
		jobs = append(jobs, job{key, &timingsource.PathSource{FS: fsys, Path: *file, MaxBytes: limit}})
	case *dir != "":
		src := &timingsource.FileSource{FS: fsys, Dir: *dir, MaxBytes: limit}
		if *all {
			keys, err := src.Keys()
			if err != nil {
				log.Fatalf("Failed to list %s: %v", *dir, err)
			}
			for _, k := range keys {
				jobs = append(jobs, job{k, src})
			}
		} else {
			jobs = append(jobs, job{timing.Key{Surah: *surah, Reciter: *reciter}, src})
		}
	default:
		fmt.Fprintln(os.Stderr, "one of -file or -dir is required")
		flag.Usage()
		os.Exit(2)
	}
	if len(jobs) == 0 {
		log.Fatalf("No timing files in %s", *dir)
	}

	failed := 0
	for _, j := range jobs {
		if err := reportOne(context.Background(), fsys, *out, j.src, j.key, bands); err != nil {
			log.Printf("%s: %v", j.key, err)
			failed++
		}
	}
	if failed > 0 {
		log.Fatalf("%d of %d reports failed", failed, len(jobs))
	}
}

func reportOne(ctx context.Context, fsys fsutil.FileSystem, out string, src timingsource.Source, key timing.Key, bands highlight.Bands) error {
	raw, err := src.FetchTiming(ctx, key)
	if err != nil {
		return err
	}
	tbl, rep, err := timing.NormalizeWithReport(key, raw)
	if err != nil {
		return err
	}
	if n := rep.Dropped(); n > 0 {
		log.Printf("%s: dropped %d of %d records (invalid=%d duplicate=%d overlap=%d preamble=%d)",
			key, n, rep.Input, rep.Invalid, rep.Duplicate, rep.Overlap, rep.Preamble)
	}

	sum := timing.NewIndex(tbl).Summary()
	log.Printf("%s: %d verses over %s, mean %.2fs, median %.2fs, longest verse %d (%.2fs)",
		key, sum.Verses, units.FormatClock(sum.End), sum.MeanVerse, sum.MedianVerse, sum.LongestAyah, sum.LongestVerse)

	paths, err := report.WriteFiles(fsys, out, tbl, bands)
	for _, p := range paths {
		log.Printf("wrote %s", p)
	}
	return err
}

// keyFromFileName reads <surah>_<reciter>.json names; anything else is
// reported under surah 0 with the file's base name.
func keyFromFileName(path string) timing.Key {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var k timing.Key
	if n, err := fmt.Sscanf(base, "%d_%s", &k.Surah, &k.Reciter); err == nil && n == 2 {
		return k
	}
	return timing.Key{Reciter: base}
}
