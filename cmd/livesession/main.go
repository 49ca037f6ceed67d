// Command livesession connects to a live quiz session from the terminal.
//
// Configuration via flags or environment variables (a .env file in the
// working directory is loaded first):
//
//	LIVESESSION_URL   WebSocket URL of the STOMP endpoint
//	LIVESESSION_KEY   session key (join code)
//	LIVESESSION_TOKEN bearer token
//
// Usage:
//
//	livesession watch --stream participants --stream state
//	livesession send --action answer --payload '{"choice":2}'
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	livesession "github.com/layr8/livesession"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "livesession: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "livesession",
		Usage:   "watch and drive a live quiz session over STOMP/WebSocket",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "WebSocket URL of the STOMP endpoint", Sources: cli.EnvVars("LIVESESSION_URL")},
			&cli.StringFlag{Name: "key", Usage: "session key (join code)", Sources: cli.EnvVars("LIVESESSION_KEY")},
			&cli.StringFlag{Name: "token", Usage: "bearer token", Sources: cli.EnvVars("LIVESESSION_TOKEN")},
			&cli.DurationFlag{Name: "handshake-timeout", Usage: "give up when CONNECTED takes longer (0 waits forever)", Value: 10 * time.Second},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:  "watch",
				Usage: "print every message on the session's topic streams",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "stream", Aliases: []string{"s"}, Usage: "topic stream to follow", Value: []string{"participants", "state"}},
					&cli.BoolFlag{Name: "reconnect", Usage: "reconnect with backoff when the connection drops"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runWatch(ctx, cmd, out)
				},
			},
			{
				Name:  "send",
				Usage: "send one JSON payload to a session action",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "action", Aliases: []string{"a"}, Usage: "action name, e.g. answer", Required: true},
					&cli.StringFlag{Name: "payload", Aliases: []string{"p"}, Usage: "JSON payload", Value: "{}"},
				},
				Action: runSend,
			},
		},
	}
}

func newLogger(cmd *cli.Command) zerolog.Logger {
	level := zerolog.InfoLevel
	if cmd.Bool("debug") {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
}

func newSession(cmd *cli.Command, logger zerolog.Logger, extra ...livesession.Option) (*livesession.Session, error) {
	opts := append([]livesession.Option{
		livesession.WithHandshakeTimeout(cmd.Duration("handshake-timeout")),
	}, extra...)

	s, err := livesession.NewSession(livesession.Config{
		URL:        cmd.String("url"),
		SessionKey: cmd.String("key"),
		Token:      cmd.String("token"),
	}, livesession.ZerologErrors(logger), opts...)
	if err != nil {
		return nil, err
	}
	s.OnConnect(func() { logger.Info().Str("key", s.Key()).Msg("connected") })
	s.OnDisconnect(func(err error) { logger.Warn().Err(err).Msg("disconnected") })
	return s, nil
}

func runWatch(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	logger := newLogger(cmd)

	var extra []livesession.Option
	if cmd.Bool("reconnect") {
		extra = append(extra, livesession.WithReconnect(time.Second, 30*time.Second))
	}
	s, err := newSession(cmd, logger, extra...)
	if err != nil {
		return err
	}
	defer s.Close()

	enc := json.NewEncoder(out)
	for _, stream := range cmd.StringSlice("stream") {
		dest := livesession.TopicDestination(s.Key(), stream)
		s.Subscribe(dest, func(msg *livesession.Message) {
			enc.Encode(struct {
				Destination string          `json:"destination"`
				Body        json.RawMessage `json:"body"`
			}{msg.Destination, msg.Raw()})
		})
		logger.Debug().Str("destination", dest).Msg("subscribed")
	}

	if err := s.Connect(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return nil
}

func runSend(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd)

	payload := json.RawMessage(cmd.String("payload"))
	if !json.Valid(payload) {
		return fmt.Errorf("--payload is not valid JSON")
	}

	s, err := newSession(cmd, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	connected := make(chan struct{})
	s.OnConnect(func() { close(connected) })

	dest := livesession.AppDestination(s.Key(), cmd.String("action"))
	if err := s.Send(dest, payload); err != nil {
		return err
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}

	// The queued SEND is flushed before OnConnect fires.
	select {
	case <-connected:
		logger.Info().Str("destination", dest).Msg("sent")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
