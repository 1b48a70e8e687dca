// Package challengekey generates ownership challenge pairs for room clients
// that cannot reach a running server's challenge endpoint.
package challengekey

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/lowrenn/inkroom/internal/services/room/domain"
)

// Config holds configuration for challenge pair generation.
type Config struct {
	JSON bool
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.BoolVar(&cfg.JSON, "json", cfg.JSON, "emit the pair as JSON")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates a challenge pair and writes it to out.
func Run(cfg Config, out io.Writer) error {
	if out == nil {
		return errors.New("output is required")
	}

	challenge, err := domain.NewChallenge()
	if err != nil {
		return fmt.Errorf("generate challenge: %w", err)
	}

	if cfg.JSON {
		return json.NewEncoder(out).Encode(challenge)
	}
	_, err = fmt.Fprintf(out, "secret=%s\nhash=%s\n", challenge.Secret, challenge.Hash)
	return err
}
