// Package main is a terminal client for the duel server
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/tecu23/duel-server/pkg/chess"
	"github.com/tecu23/duel-server/pkg/client"
	"github.com/tecu23/duel-server/pkg/messages"
)

func main() {
	_ = godotenv.Load()

	host := flag.String("host", envOr("HOST", "127.0.0.1"), "server host")
	port := flag.String("port", envOr("PORT", "5000"), "server port")
	interval := flag.Duration("interval", client.DefaultRenderInterval, "clock redraw interval")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := initLogger(*debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, net.JoinHostPort(*host, *port), *interval, os.Stdin, os.Stdout, logger); err != nil {
		logger.Fatal("client error", zap.Error(err))
	}
}

// run connects, prints server records and clocks, and sends commands typed
// on in until the server hangs up or the user quits
func run(ctx context.Context, addr string, interval time.Duration, in io.Reader, out io.Writer, logger *zap.Logger) error {
	clk := clockwork.NewRealClock()

	c, err := client.Dial(ctx, addr, clk, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	ui := &terminal{out: out, side: chess.White}
	rec := client.NewReconciler(clk, chess.DefaultInitialTime)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return c.Listen(gctx, func(msg messages.Outbound) {
			rec.ObserveRecord(msg)
			logger.Debug("record", zap.String("type", string(msg.Kind())), zap.Duration("offset", rec.Offset()))
			ui.show(msg)
		})
	})

	g.Go(func() error {
		err := rec.Run(gctx, interval, ui.clocks)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		defer cancel()
		return readCommands(gctx, in, c, ui)
	})

	ui.println("commands: ready | move e2 e4 [q|r|b|n] | quit")
	return g.Wait()
}

func readCommands(ctx context.Context, in io.Reader, c *client.Client, ui *terminal) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := execute(line, c)
			if err != nil {
				ui.println(err.Error())
			}
			if quit {
				return nil
			}
		}
	}
}

func execute(line string, c *client.Client) (bool, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "ready", "r":
		return false, c.SendReady()

	case "move", "m":
		if len(fields) < 3 {
			return false, errors.New("usage: move e2 e4 [promotion]")
		}
		from, err := chess.ParseSquare(fields[1])
		if err != nil {
			return false, err
		}
		to, err := chess.ParseSquare(fields[2])
		if err != nil {
			return false, err
		}
		promotion := ""
		if len(fields) > 3 {
			promotion = fields[3]
		}
		return false, c.SendMove(from, to, promotion)

	case "quit", "q", "exit":
		return true, nil
	}

	return false, fmt.Errorf("unknown command %q", fields[0])
}

// terminal serialises writes from the listen loop and the clock ticker
type terminal struct {
	mu   sync.Mutex
	out  io.Writer
	side chess.Side
}

func (t *terminal) show(msg messages.Outbound) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch m := msg.(type) {
	case messages.JoinAccepted:
		t.side = m.Color
		fmt.Fprintf(t.out, "\r\033[Kjoined as %s, type ready to start\n", m.Color)
	case messages.JoinRejected:
		fmt.Fprintf(t.out, "\r\033[Krejected: %s\n", m.Reason)
	case messages.GameStart:
		t.side = m.Color
		fmt.Fprintf(t.out, "\r\033[Kgame started, you play %s\n%s\n", m.Color, m.FEN)
	case messages.MoveAccepted:
		fmt.Fprintf(t.out, "\r\033[K%s to move\n%s\n", m.Turn, m.FEN)
	case messages.IllegalMove:
		fmt.Fprintf(t.out, "\r\033[K%s\n", m.Reason)
	case messages.GameOver:
		fmt.Fprintf(t.out, "\r\033[K%s\n", m.Reason)
	}
}

func (t *terminal) clocks(v client.View) {
	if !v.Active {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "\r\033[KYou: %s  Opponent: %s",
		chess.FormatClockTime(v.Remaining(t.side)),
		chess.FormatClockTime(v.Remaining(t.side.Opp())))
}

func (t *terminal) println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "\r\033[K%s\n", s)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func initLogger(debug bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	return logger
}
