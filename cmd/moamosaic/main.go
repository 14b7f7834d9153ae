package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neilflood/moamosaic/internal/mosaic"
	"github.com/neilflood/moamosaic/internal/monitor"
)

// stringSliceFlag collects repeated flag occurrences into an ordered
// slice, matching the original's `--co` argparse `action="append"`
// (original_source/moamosaic/mosaic.py's getCmdargs).
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ",") }
func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		outputFormat    string
		numThreads      int
		blockSize       int
		nullValueStr    string
		omitPyramids    bool
		monitorJSON     string
		verbose         bool
		showVersion     bool
		cpuProfile      string
		memProfile      string
		metricsAddr     string
		inputListPath   string
		creationOptions stringSliceFlag
	)

	flag.StringVar(&inputListPath, "input-list", "", "Text file of input paths, one per line (order defines merge order); alternative to listing files/dirs as arguments")
	flag.StringVar(&outputFormat, "format", mosaic.DefaultDriver, "Output raster driver name (only GTiff is implemented)")
	flag.IntVar(&numThreads, "numthreads", mosaic.DefaultNumThreads, "Number of reader threads per band")
	flag.IntVar(&blockSize, "blocksize", mosaic.DefaultBlockSize, "Output block size in pixels")
	flag.StringVar(&nullValueStr, "null-value", "", "Override the output null/no-data value (default: first input's)")
	flag.BoolVar(&omitPyramids, "omit-pyramids", false, "Skip building overview pyramids")
	flag.Var(&creationOptions, "co", "Output driver creation option NAME=VALUE (repeatable; replaces the driver's defaults entirely if given)")
	flag.StringVar(&monitorJSON, "monitorjson", "", "Write the monitoring report as JSON to this file")
	flag.BoolVar(&verbose, "verbose", false, "Verbose progress output")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	flag.StringVar(&memProfile, "memprofile", "", "Write memory profile to file")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090) while the run is in progress; empty disables it")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: moamosaic [flags] <input.tif...> <output.tif>\n")
		fmt.Fprintf(os.Stderr, "       moamosaic [flags] -input-list <files.txt> <output.tif>\n\n")
		fmt.Fprintf(os.Stderr, "Stitch geo-referenced raster tiles into one mosaicked output raster.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("moamosaic %s (commit %s, built %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log, err := monitor.NewLogger(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatalf("Creating CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("Starting CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	if memProfile != "" {
		defer func() {
			f, err := os.Create(memProfile)
			if err != nil {
				log.Fatalf("Creating memory profile: %v", err)
			}
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Fatalf("Writing memory profile: %v", err)
			}
		}()
	}

	var registerer prometheus.Registerer
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		registerer = reg
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warnf("Metrics server: %v", err)
			}
		}()
		defer srv.Close()
		log.Infof("Serving Prometheus metrics on %s/metrics", metricsAddr)
	}

	args := flag.Args()

	var outputPath string
	var tiffFiles []string
	if inputListPath != "" {
		// spec.md §6's "Input file list": a text file, one input path
		// per line, blank-trimmed, no comment syntax; order defines
		// merge order, so these paths are used exactly as listed,
		// never re-sorted or deduplicated.
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "moamosaic: -input-list takes exactly one positional argument, the output path")
			flag.Usage()
			os.Exit(1)
		}
		outputPath = args[0]
		list, err := readInputList(inputListPath)
		if err != nil {
			log.Fatalf("Reading -input-list: %v", err)
		}
		tiffFiles = list
	} else {
		if len(args) < 2 {
			flag.Usage()
			os.Exit(1)
		}
		outputPath = args[len(args)-1]
		list, err := collectTIFFs(args[:len(args)-1])
		if err != nil {
			log.Fatalf("Collecting input files: %v", err)
		}
		tiffFiles = list
	}
	if len(tiffFiles) == 0 {
		log.Fatal("No input files given")
	}

	opts := mosaic.Options{
		InputFiles:      tiffFiles,
		OutputFile:      outputPath,
		NumThreads:      numThreads,
		BlockSize:       blockSize,
		DriverName:      outputFormat,
		CreationOptions: creationOptions,
		OmitPyramids:    omitPyramids,
		Registerer:      registerer,
	}
	if nullValueStr != "" {
		v, err := strconv.ParseFloat(nullValueStr, 64)
		if err != nil {
			log.Fatalf("Parsing -null-value: %v", err)
		}
		opts.NullValue, opts.HasNullValue = v, true
	}

	fmt.Printf("moamosaic %s (commit %s, built %s)\n", version, commit, buildDate)
	fmt.Printf("  %-14s %d\n", "Threads:", numThreads)
	fmt.Printf("  %-14s %dpx\n", "Block size:", blockSize)
	fmt.Printf("  %-14s %s\n", "Driver:", outputFormat)
	fmt.Printf("  %-14s %d file(s)\n", "Input:", len(tiffFiles))
	fmt.Printf("  %-14s %s\n", "Output:", outputPath)

	start := time.Now()
	report, err := mosaic.Run(context.Background(), opts, log)
	if err != nil {
		log.Fatalf("Mosaicing: %v", err)
	}
	elapsed := time.Since(start).Round(time.Millisecond)

	if monitorJSON != "" {
		if err := writeMonitorJSON(monitorJSON, report); err != nil {
			log.Warnf("Writing monitor JSON: %v", err)
		}
	}

	fi, _ := os.Stat(outputPath)
	var size int64
	if fi != nil {
		size = fi.Size()
	}
	fmt.Printf("Done: %s, %v -> %s\n", humanSize(size), elapsed, outputPath)
}

func writeMonitorJSON(path string, report monitor.Report) error {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// readInputList reads a text file of input paths, one per line, per
// spec.md §6 ("blank-trimmed; no comments"): every line is trimmed of
// surrounding whitespace, and blank lines are dropped; nothing else is
// special about the syntax, so a line starting with "#" is a path, not a
// comment. Mirrors original_source/moamosaic/mosaic.py's makeFilelist.
func readInputList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

// collectTIFFs resolves input paths to a list of .tif files, expanding any
// directory arguments one level deep.
func collectTIFFs(paths []string) ([]string, error) {
	var result []string
	for _, p := range paths {
		if strings.Contains(p, "://") {
			result = append(result, p)
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			entries, err := os.ReadDir(p)
			if err != nil {
				return nil, fmt.Errorf("readdir %s: %w", p, err)
			}
			for _, e := range entries {
				if !e.IsDir() && isTIFF(e.Name()) {
					result = append(result, filepath.Join(p, e.Name()))
				}
			}
		} else if isTIFF(p) {
			result = append(result, p)
		}
	}
	return result, nil
}

func isTIFF(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".tif") || strings.HasSuffix(lower, ".tiff")
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for n2 := n / unit; n2 >= unit; n2 /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
