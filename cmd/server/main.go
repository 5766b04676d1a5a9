package main

import (
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/glewis05/propel-mcp/internal/server"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	h, err := server.NewHandlerWithOptions(server.HandlerOptions{Logger: &log})
	if err != nil {
		log.Fatal().Err(err).Msg("server init")
	}

	log.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}
