package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dice-parlor/internal/config"
)

// Init wires the global logger from config. When a log file is configured
// output goes to stdout and the capped file sink; the returned closer flushes
// the sink and is a no-op otherwise.
func Init(cfg config.LogConfig) (io.Closer, error) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var output io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		sink, err := newFileSink(cfg.File, cfg.MaxMB)
		if err != nil {
			return nil, err
		}
		output = io.MultiWriter(os.Stdout, sink)
		closer = sink
	}
	writer = output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return closer, nil
}

var writer io.Writer = os.Stdout

// Writer exposes the raw log destination for collaborators that carry their
// own logger, like the HTTP request logger.
func Writer() io.Writer {
	return writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
