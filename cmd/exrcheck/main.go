// exrcheck validates OpenEXR files by reading their headers and decoding
// every chunk in pedantic mode.
//
// Usage:
//
//	exrcheck [-q|--quiet] [-s|--strict] [-i|--info] <filename> [<filename> ...]
//
// Options:
//
//	-q, --quiet   Only output errors. Exit code indicates pass/fail.
//	-s, --strict  Treat warnings as errors.
//	-i, --info    Print a summary of every part.
//	-h, --help    Show this help message.
//	--version     Show version information.
//
// Exit codes:
//
//	0: All files valid
//	1: One or more files invalid
//	2: Error (file not found, etc.)
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fursund/exrs/exrutil"
)

const version = "1.0.0"

type options struct {
	quiet  bool
	strict bool
	info   bool
	files  []string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes exrcheck and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	for _, arg := range args {
		switch arg {
		case "-q", "--quiet":
			opts.quiet = true
		case "-s", "--strict":
			opts.strict = true
		case "-i", "--info":
			opts.info = true
		case "-h", "--help":
			printUsage(stdout)
			return 0
		case "--version":
			fmt.Fprintf(stdout, "exrcheck version %s\n", version)
			return 0
		default:
			if strings.HasPrefix(arg, "-") {
				fmt.Fprintf(stderr, "Unknown option: %s\n", arg)
				printUsage(stderr)
				return 2
			}
			opts.files = append(opts.files, arg)
		}
	}

	if len(opts.files) == 0 {
		fmt.Fprintln(stderr, "Error: No input files specified")
		printUsage(stderr)
		return 2
	}

	validCount := 0
	errorOccurred := false
	for _, filename := range opts.files {
		result, err := exrutil.ValidateFile(filename)
		if err != nil {
			if !opts.quiet {
				fmt.Fprintf(stderr, "%s: error: %v\n", filename, err)
			}
			errorOccurred = true
			continue
		}
		valid := result.Valid && !(opts.strict && len(result.Warnings) > 0)
		if valid {
			validCount++
		}

		switch {
		case !opts.quiet:
			printResult(stdout, filename, result, valid)
			if opts.info && result.Valid {
				printInfo(stdout, filename)
			}
		case !valid:
			for _, msg := range result.Errors {
				fmt.Fprintf(stderr, "%s: %s\n", filename, msg)
			}
			if opts.strict {
				for _, msg := range result.Warnings {
					fmt.Fprintf(stderr, "%s: %s\n", filename, msg)
				}
			}
		}
	}

	if len(opts.files) > 1 && !opts.quiet {
		fmt.Fprintf(stdout, "\nSummary: %d of %d files valid\n", validCount, len(opts.files))
	}

	if errorOccurred {
		return 2
	}
	if validCount < len(opts.files) {
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: exrcheck [options] <filename> [<filename> ...]

Validate OpenEXR files by decoding every chunk.

Options:
  -q, --quiet    Only output errors. Exit code indicates pass/fail.
  -s, --strict   Treat warnings as errors.
  -i, --info     Print a summary of every part.
  -h, --help     Show this help message.
  --version      Show version information.

Exit codes:
  0: All files valid
  1: One or more files invalid
  2: Error (file not found, permission denied, etc.)`)
}

func printResult(w io.Writer, filename string, result *exrutil.ValidationResult, valid bool) {
	if valid {
		fmt.Fprintf(w, "%s: OK\n", filename)
	} else {
		fmt.Fprintf(w, "%s: INVALID\n", filename)
	}
	for _, msg := range result.Errors {
		fmt.Fprintf(w, "  [ERROR] %s\n", msg)
	}
	for _, msg := range result.Warnings {
		fmt.Fprintf(w, "  [WARNING] %s\n", msg)
	}
}

func printInfo(w io.Writer, filename string) {
	info, err := exrutil.GetFileInfo(filename)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "  %d part(s), %d bytes\n", info.NumParts, info.FileSize)
	for i, p := range info.Parts {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("part %d", i)
		}
		layout := "scanline"
		if p.IsTiled {
			layout = fmt.Sprintf("tiled %dx%d, %d level(s)", p.TileWidth, p.TileHeight, p.Levels)
		}
		if p.IsDeep {
			layout = "deep " + layout
		}
		fmt.Fprintf(w, "  %s: %dx%d %s %v [%s]\n",
			name, p.Width, p.Height, layout, p.Compression, strings.Join(p.Channels, " "))
	}
}
