package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dotsetgreg/dotpersona/pkg/bus"
	"github.com/dotsetgreg/dotpersona/pkg/logger"
)

const maxInputLine = 1 << 20

// serveJSONLines feeds inbound messages read from in through the bus and
// writes every outbound message to out as one JSON object per line. It
// returns once in is exhausted and every queued turn has been answered.
func serveJSONLines(ctx context.Context, e *engine, in io.Reader, out io.Writer) error {
	maintCtx, stopMaint := context.WithCancel(ctx)
	defer stopMaint()

	var g errgroup.Group
	g.Go(func() error {
		enc := json.NewEncoder(out)
		for {
			msg, ok := e.bus.SubscribeOutbound(context.Background())
			if !ok {
				return nil
			}
			if err := enc.Encode(msg); err != nil {
				return err
			}
		}
	})
	g.Go(func() error {
		defer e.bus.Close()
		defer stopMaint()
		return e.loop.Run(ctx)
	})
	g.Go(func() error {
		return e.runMaintenance(maintCtx, e.loop.PublishCheckIn)
	})

	readErr := readInbound(ctx, in, e.bus)
	e.bus.CloseInbound()
	return errors.Join(readErr, g.Wait())
}

func readInbound(ctx context.Context, in io.Reader, b *bus.MessageBus) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxInputLine)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			var msg bus.InboundMessage
			if err := json.Unmarshal([]byte(line), &msg); err != nil {
				logger.WarnCF("cli", "Skipping malformed input line", map[string]any{"error": err.Error()})
				continue
			}
			if !b.PublishInbound(msg) {
				logger.WarnCF("cli", "Inbound queue full, message dropped", map[string]any{
					"channel": msg.Channel,
					"chat_id": msg.ChatID,
				})
			}
		}
	}
}
