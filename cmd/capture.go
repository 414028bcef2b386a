// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemgen/pkg/telem"
)

var (
	captureOut      string
	captureDuration time.Duration
	captureBoard    string
	captureInterval int
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record raw telemetry packets from a connection",
	Long: `Copy raw bytes from a serial port or WebSocket bridge into a capture file
that decode can read back.

Recording stops on Ctrl+C, when the connection closes or after --duration.
With --board the stream is also split into frames of the board's packet size
and validated, and statistics are printed every --stats-interval seconds.

Exit codes:
  0 - Capture finished
  1 - Connection or write error`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVarP(&captureOut, "out", "o", "", "Capture file")
	captureCmd.Flags().DurationVar(&captureDuration, "duration", 0, "Stop after this long (default: until Ctrl+C)")
	captureCmd.Flags().StringVar(&captureBoard, "board", "", "Validate frames against this board's layout")
	captureCmd.Flags().IntVar(&captureInterval, "stats-interval", 10, "Statistics update interval (seconds, with --board)")
	_ = captureCmd.MarkFlagRequired("out")
}

func runCapture(cmd *cobra.Command, args []string) error {
	var codec *telem.Codec
	if captureBoard != "" {
		m, err := loadModel(captureBoard)
		if err != nil {
			return err
		}
		codec = m.Codec()
	}

	out, err := os.Create(captureOut)
	if err != nil {
		return err
	}
	defer out.Close()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if captureDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, captureDuration)
		defer cancel()
	}

	fmt.Printf("Telemgen - Capture\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Output: %s\n", captureOut)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	c := &capturer{
		conn:     conn,
		out:      out,
		codec:    codec,
		interval: time.Duration(captureInterval) * time.Second,
		report:   os.Stdout,
	}
	n, err := c.run(ctx)
	fmt.Printf("\nCaptured %d bytes\n", n)
	if c.stats != nil {
		fmt.Print(c.stats.String())
	}
	return err
}

// capturer copies a connection into a capture file until ctx is done.
type capturer struct {
	conn io.ReadCloser
	out  io.Writer

	// codec enables frame validation when set.
	codec    *telem.Codec
	interval time.Duration
	report   io.Writer

	stats   *telem.Statistics
	pending []byte
}

type chunk struct {
	data []byte
	err  error
}

// run returns the number of bytes written. The reader goroutine is
// unblocked by closing the connection once ctx is done.
func (c *capturer) run(ctx context.Context) (int64, error) {
	if c.codec != nil {
		c.stats = telem.NewStatistics()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan chunk)
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, 512)
			n, err := c.conn.Read(buf)
			select {
			case chunks <- chunk{data: buf[:n], err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var ticks <-chan time.Time
	if c.stats != nil && c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	var written int64
	for {
		select {
		case <-ctx.Done():
			_ = c.conn.Close()
			return written, nil

		case <-ticks:
			fmt.Fprint(c.report, c.stats.String())

		case ch, ok := <-chunks:
			if !ok {
				return written, nil
			}
			if len(ch.data) > 0 {
				n, err := c.out.Write(ch.data)
				written += int64(n)
				if err != nil {
					return written, fmt.Errorf("write capture: %w", err)
				}
				c.validate(ch.data)
			}
			if ch.err != nil {
				if errors.Is(ch.err, io.EOF) || errors.Is(ch.err, ErrConnectionClosed) {
					return written, nil
				}
				return written, fmt.Errorf("read: %w", ch.err)
			}
		}
	}
}

// validate splits the stream into packets and reports out-of-range values.
func (c *capturer) validate(data []byte) {
	if c.codec == nil || c.codec.Size() == 0 {
		return
	}
	c.pending = append(c.pending, data...)
	size := c.codec.Size()
	for len(c.pending) >= size {
		frame, err := c.codec.Decode(c.pending[:size])
		c.pending = c.pending[size:]
		if err != nil {
			c.stats.Update(err, nil)
			continue
		}
		anomalies := telem.ValidateFrame(frame)
		c.stats.Update(nil, anomalies)
		for _, a := range anomalies {
			fmt.Fprintf(c.report, "[%s] %s %s\n", time.Now().Format("15:04:05.000"), errorStyle.Render(a.Type.String()+":"), a.Message)
		}
	}
}
