package cmds

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/loopdash/pkg/ansistyle"
	"github.com/go-go-golems/loopdash/pkg/config"
	"github.com/go-go-golems/loopdash/pkg/logfilter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type filterOptions struct {
	filterFlags
	inputPath string
	format    string
	noConfig  bool
}

// filteredLine is the ndjson record of one kept line.
type filteredLine struct {
	Line      int64  `json:"line"`
	Iteration *int   `json:"iteration,omitempty"`
	Error     bool   `json:"error,omitempty"`
	Text      string `json:"text"`
}

func newFilterCmd() *cobra.Command {
	opts := &filterOptions{}

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter a saved loop log (file or stdin) with the dashboard's filter engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			var file *config.File
			if !opts.noConfig {
				ro, err := getRootOptions(cmd)
				if err != nil {
					return err
				}
				file = ro.File
			}
			return runFilter(cmd.Context(), cmd, opts, file)
		},
	}

	opts.addTo(cmd.Flags())
	cmd.Flags().StringVar(&opts.inputPath, "input", "", "Input file path (default: stdin)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text|ndjson")
	cmd.Flags().BoolVar(&opts.noConfig, "no-config", false, "Ignore markers_js from the config file")
	return cmd
}

func runFilter(ctx context.Context, cmd *cobra.Command, opts *filterOptions, file *config.File) error {
	if opts.format != "text" && opts.format != "ndjson" {
		return errors.New("--format must be text or ndjson")
	}
	criteria, err := opts.criteria()
	if err != nil {
		return err
	}
	engineOpts, err := opts.engineOptions(ctx, file)
	if err != nil {
		return err
	}
	// errOnly marks error lines in ndjson records regardless of the criteria
	engine := logfilter.NewEngine(criteria, engineOpts...)
	errOnly := logfilter.NewEngine(logfilter.Criteria{Mode: logfilter.ModeErrors}, engineOpts...)

	var r io.Reader
	if opts.inputPath != "" {
		f, err := os.Open(opts.inputPath)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	} else {
		r = cmd.InOrStdin()
		if r == io.Reader(os.Stdin) && !stdinIsPipe() {
			return errors.New("no input: pass --input or pipe a log into stdin")
		}
	}

	bw := bufio.NewWriter(cmd.OutOrStdout())
	defer func() { _ = bw.Flush() }()
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	br := bufio.NewReader(r)
	var lineNumber int64
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if line == "" && errors.Is(err, io.EOF) {
			break
		}
		lineNumber++
		line = strings.TrimRight(line, "\r\n")

		isErr := errOnly.Keep(line)
		if engine.Keep(line) {
			if werr := writeFiltered(bw, enc, opts, engine, lineNumber, line, isErr); werr != nil {
				return werr
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}
	return nil
}

func writeFiltered(w io.Writer, enc *json.Encoder, opts *filterOptions, engine *logfilter.Engine, n int64, line string, isErr bool) error {
	if opts.noColor || opts.format == "ndjson" {
		line = ansistyle.Strip(line)
	}
	if opts.format == "text" {
		_, err := fmt.Fprintln(w, line)
		return err
	}
	rec := filteredLine{Line: n, Error: isErr, Text: line}
	if it, ok := engine.Current(); ok {
		rec.Iteration = &it
	}
	return enc.Encode(rec)
}
