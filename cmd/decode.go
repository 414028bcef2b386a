// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemgen/pkg/telem"
)

var (
	decodeBoard    string
	decodeFormat   string
	decodeOut      string
	decodePeriod   time.Duration
	decodeValidate bool
	decodeRaw      bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode FILE",
	Short: "Decode a capture of raw telemetry packets",
	Long: `Decode a file of back-to-back telemetry packets using a board's layout.

Formats:
  csv     - the same log the generated decoder writes (default)
  json    - one JSON record per line
  cbor    - concatenated CBOR records
  msgpack - concatenated MessagePack records
  text    - one human-readable block per frame

Frame times are derived from the frame index and --period. With --validate
every frame is checked against the schema min/max bounds, anomalies are
reported on stderr and a statistics summary is printed at the end.

Use - as FILE to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVar(&decodeBoard, "board", "", "Board name or id")
	decodeCmd.Flags().StringVarP(&decodeFormat, "format", "f", "csv", "Output format: csv, json, cbor, msgpack or text")
	decodeCmd.Flags().StringVarP(&decodeOut, "out", "o", "", "Output file (default: stdout)")
	decodeCmd.Flags().DurationVar(&decodePeriod, "period", 100*time.Millisecond, "Time between frames")
	decodeCmd.Flags().BoolVar(&decodeValidate, "validate", false, "Check frames against schema bounds and print statistics")
	decodeCmd.Flags().BoolVar(&decodeRaw, "raw", false, "Include raw packet bytes in json, cbor and msgpack records")
	_ = decodeCmd.MarkFlagRequired("board")
}

func runDecode(cmd *cobra.Command, args []string) error {
	w, err := newFrameWriter(decodeFormat)
	if err != nil {
		return err
	}
	m, err := loadModel(decodeBoard)
	if err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	out := io.Writer(os.Stdout)
	if decodeOut != "" {
		f, err := os.Create(decodeOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	bw := bufio.NewWriter(out)

	var stats *telem.Statistics
	if decodeValidate {
		stats = telem.NewStatistics()
	}
	d := &decoder{
		codec:  m.Codec(),
		writer: w,
		period: decodePeriod,
		raw:    decodeRaw,
		stats:  stats,
		report: os.Stderr,
	}
	frames, decodeErr := d.run(in, bw)
	if err := bw.Flush(); err != nil {
		return err
	}

	newLogger().Info("decoded capture", "board", m.Board.Name, "frames", frames, "format", decodeFormat)
	if stats != nil {
		fmt.Fprint(os.Stderr, stats.String())
	}
	return decodeErr
}

// decoder streams frames from a capture into a frameWriter.
type decoder struct {
	codec  *telem.Codec
	writer frameWriter
	period time.Duration
	raw    bool

	// stats enables validation when set; anomalies go to report.
	stats  *telem.Statistics
	report io.Writer
}

// run decodes until EOF and returns the number of complete frames. A
// trailing partial frame is counted in the statistics and reported as an
// error after every complete frame has been written.
func (d *decoder) run(in io.Reader, out io.Writer) (uint64, error) {
	fr := telem.NewFrameReader(in, d.codec)
	if err := d.writer.Begin(out, d.codec); err != nil {
		return 0, err
	}

	for {
		frame, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return fr.Frames(), nil
		}
		if err != nil {
			if d.stats != nil {
				d.stats.Update(err, nil)
			}
			return fr.Frames(), err
		}

		t := (time.Duration(fr.Frames()-1) * d.period).Seconds()
		if d.stats != nil {
			anomalies := telem.ValidateFrame(frame)
			d.stats.Update(nil, anomalies)
			for _, a := range anomalies {
				fmt.Fprintf(d.report, "[%10.3fs] %s %s\n", t, warningStyle.Render(a.Type.String()+":"), a.Message)
			}
		}
		if err := d.writer.Write(out, d.codec, t, frame, d.raw); err != nil {
			return fr.Frames(), err
		}
	}
}

// frameWriter renders decoded frames in one output format.
type frameWriter interface {
	Begin(w io.Writer, c *telem.Codec) error
	Write(w io.Writer, c *telem.Codec, t float64, f *telem.Frame, raw bool) error
}

func newFrameWriter(format string) (frameWriter, error) {
	switch format {
	case "csv":
		return csvWriter{}, nil
	case "json":
		return jsonWriter{}, nil
	case "cbor":
		return recordWriter{marshal: telem.MarshalRecord}, nil
	case "msgpack":
		return recordWriter{marshal: telem.MarshalRecordMsgpack}, nil
	case "text":
		return textWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (use csv, json, cbor, msgpack or text)", format)
	}
}

type csvWriter struct{}

func (csvWriter) Begin(w io.Writer, c *telem.Codec) error {
	_, err := fmt.Fprintln(w, c.CSVHeader())
	return err
}

func (csvWriter) Write(w io.Writer, c *telem.Codec, t float64, f *telem.Frame, _ bool) error {
	_, err := fmt.Fprintln(w, c.LogLine(t, f))
	return err
}

type jsonWriter struct{}

func (jsonWriter) Begin(io.Writer, *telem.Codec) error { return nil }

func (jsonWriter) Write(w io.Writer, _ *telem.Codec, t float64, f *telem.Frame, raw bool) error {
	data, err := json.Marshal(telem.NewRecord(t, f, raw))
	if err != nil {
		return fmt.Errorf("frame at %.3fs: %w", t, err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

type recordWriter struct {
	marshal func(telem.Record) ([]byte, error)
}

func (recordWriter) Begin(io.Writer, *telem.Codec) error { return nil }

func (r recordWriter) Write(w io.Writer, _ *telem.Codec, t float64, f *telem.Frame, raw bool) error {
	data, err := r.marshal(telem.NewRecord(t, f, raw))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type textWriter struct{}

func (textWriter) Begin(io.Writer, *telem.Codec) error { return nil }

func (textWriter) Write(w io.Writer, _ *telem.Codec, t float64, f *telem.Frame, raw bool) error {
	out := telem.FormatFrame(t, f)
	if raw {
		out += "  raw: " + telem.FormatHex(f.Raw) + "\n"
	}
	_, err := io.WriteString(w, out)
	return err
}
