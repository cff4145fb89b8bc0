// Command csmeunpack extracts and decompresses Huffman-compressed code
// objects out of a CSME firmware image.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-csme/unpack/internal/extract"
	"github.com/go-csme/unpack/internal/huffcode"
)

type nameList []string

func (n *nameList) String() string { return strings.Join(*n, ",") }
func (n *nameList) Set(v string) error {
	*n = append(*n, v)
	return nil
}

func main() {
	var (
		tablePath  = flag.String("table", "", "path to the Huffman code table")
		imagePath  = flag.String("image", "", "path to the CSME firmware image")
		outDir     = flag.String("out", "", "output directory")
		cacheDir   = flag.String("cache", "", "optional persistent decode cache directory")
		standalone = flag.Bool("standalone", false, "decode a single standalone compressed file using -lut")
		lutPath    = flag.String("lut", "", "path to a standalone LUT file (with -standalone)")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	var only nameList
	flag.Var(&only, "only", "restrict extraction to this code object name (repeatable)")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*tablePath, *imagePath, *outDir, *cacheDir, *lutPath, *standalone, only); err != nil {
		slog.Error("csmeunpack failed", "error", err)
		os.Exit(1)
	}
}

func run(tablePath, imagePath, outDir, cacheDir, lutPath string, standalone bool, only nameList) error {
	if tablePath == "" {
		return errors.New("csmeunpack: -table is required")
	}
	tableFile, err := os.Open(tablePath)
	if err != nil {
		return fmt.Errorf("csmeunpack: opening table: %w", err)
	}
	defer tableFile.Close()

	cb, err := huffcode.LoadTable(tableFile)
	if err != nil {
		return fmt.Errorf("csmeunpack: loading table: %w", err)
	}
	slog.Info("loaded code table", "entries", cb.Len(), "min_bits", cb.MinBits(), "max_bits", cb.MaxBits())

	if standalone {
		return runStandalone(cb, imagePath, lutPath, outDir)
	}
	return runImage(cb, imagePath, outDir, cacheDir, only)
}

func runStandalone(cb *huffcode.Codebook, dataPath, lutPath, outDir string) error {
	if dataPath == "" || lutPath == "" {
		return errors.New("csmeunpack: -image and -lut are both required with -standalone")
	}
	dataFile, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("csmeunpack: opening standalone data file: %w", err)
	}
	defer dataFile.Close()

	lutFile, err := os.Open(lutPath)
	if err != nil {
		return fmt.Errorf("csmeunpack: opening standalone LUT file: %w", err)
	}
	defer lutFile.Close()
	lutInfo, err := lutFile.Stat()
	if err != nil {
		return fmt.Errorf("csmeunpack: statting standalone LUT file: %w", err)
	}

	decoded, err := extract.DecodeStandalone(cb, lutFile, int(lutInfo.Size()), dataFile)
	if err != nil {
		slog.Warn("standalone decode ended with an error, writing partial output", "error", err)
	}

	if outDir == "" {
		outDir = "."
	}
	outPath := filepath.Join(outDir, filepath.Base(dataPath)+".decoded")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("csmeunpack: creating output directory: %w", err)
	}
	if err := os.WriteFile(outPath, decoded, 0o644); err != nil {
		return fmt.Errorf("csmeunpack: writing output: %w", err)
	}
	slog.Info("wrote standalone decode", "path", outPath, "bytes", len(decoded))
	return nil
}

func runImage(cb *huffcode.Codebook, imagePath, outDir, cacheDir string, only nameList) error {
	if imagePath == "" || outDir == "" {
		return errors.New("csmeunpack: -image and -out are both required")
	}
	imageFile, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("csmeunpack: opening image: %w", err)
	}
	defer imageFile.Close()

	persistent, err := extract.OpenPersistentCache(cacheDir)
	if err != nil {
		return fmt.Errorf("csmeunpack: opening decode cache: %w", err)
	}
	defer persistent.Close()

	driver := extract.NewExtractionDriver(cb, persistent)

	var onlyNames map[string]bool
	if len(only) > 0 {
		onlyNames = make(map[string]bool, len(only))
		for _, n := range only {
			onlyNames[n] = true
		}
	}

	results, err := driver.Extract(context.Background(), imageFile, 0, onlyNames)
	if err != nil {
		return fmt.Errorf("csmeunpack: extraction: %w", err)
	}

	written := make(map[string]string) // "partition/name" -> output path
	for _, r := range results {
		partDir := filepath.Join(outDir, r.Partition)
		if err := os.MkdirAll(partDir, 0o755); err != nil {
			return fmt.Errorf("csmeunpack: creating %s: %w", partDir, err)
		}
		outPath := filepath.Join(partDir, r.Name+".decoded")

		if r.AliasOf != "" {
			if src, ok := written[r.AliasOf]; ok {
				if err := os.Symlink(src, outPath); err != nil {
					slog.Warn("could not symlink aliased code object", "partition", r.Partition, "name", r.Name, "error", err)
				} else {
					slog.Info("linked aliased code object", "partition", r.Partition, "name", r.Name, "alias_of", r.AliasOf)
				}
				continue
			}
		}

		if err := os.WriteFile(outPath, r.Data, 0o644); err != nil {
			return fmt.Errorf("csmeunpack: writing %s: %w", outPath, err)
		}
		written[r.Partition+"/"+r.Name] = outPath

		if r.Err != nil {
			slog.Warn("code object decoded with errors, partial output written", "partition", r.Partition, "name", r.Name, "error", r.Err)
		} else {
			slog.Info("wrote code object", "partition", r.Partition, "name", r.Name, "bytes", len(r.Data))
		}
	}
	return nil
}
