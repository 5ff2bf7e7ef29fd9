// Command lockscreen drives one passcode flow from the terminal against the configured
// passcode store. It is the interactive counterpart of the HTTP API and shares its
// configuration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/passcode/internal/appearance"
	"github.com/congo-pay/passcode/internal/config"
	"github.com/congo-pay/passcode/internal/infra"
	"github.com/congo-pay/passcode/internal/logging"
	"github.com/congo-pay/passcode/internal/passcode"
	"github.com/congo-pay/passcode/internal/secret"
)

func main() {
	owner := flag.String("owner", "", "owner id whose passcode is used")
	modeName := flag.String("mode", "verify", "flow mode: verify, change, create or deactivate")
	flag.Parse()

	if err := run(*owner, *modeName); err != nil {
		fmt.Fprintf(os.Stderr, "lockscreen: %v\n", err)
		os.Exit(1)
	}
}

func run(owner, modeName string) error {
	if owner == "" {
		return errors.New("-owner is required")
	}
	mode, err := passcode.ParseMode(modeName)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	look, err := appearance.Load(cfg.AppearanceFile)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "cancel",
		EnableMask:      true,
		MaskRune:        '*',
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	logger := logging.NewWithWriter(rl.Stderr(), cfg.LogLevel)
	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.Store == config.StorePostgres {
		if db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName); err != nil {
			return err
		}
		defer db.Close()
	}
	var cache *redis.Client
	if cfg.Store == config.StoreRedis {
		if cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, cfg.AppName); err != nil {
			return err
		}
		defer cache.Close()
	}
	repo, err := secret.Open(ctx, cfg.Store, db, cache)
	if err != nil {
		return err
	}
	if cfg.Store == config.StoreMemory {
		logger.Warn("passcodes are kept in memory and will be lost on exit")
	}
	hasher, err := secret.NewHasher(cfg.HashCost)
	if err != nil {
		return err
	}

	messages := look.PromptMessages()
	term := newTerminal(rl.Stdout(), cfg.PasscodeLength, "")
	flow, err := passcode.New(secret.NewStore(repo, hasher, owner), mode, passcode.Options{
		Length:    cfg.PasscodeLength,
		Messages:  messages,
		Presenter: term,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	term.prompt = flow.Prompt()

	fmt.Fprintf(rl.Stdout(), "%s\nType digits and press enter. 'b' deletes a digit, 'q' cancels.\n", look.Title)
	term.render()
	return loop(ctx, rl, flow, term)
}

func loop(ctx context.Context, rl *readline.Instance, flow *passcode.Flow, term *terminal) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return cancel(flow, rl)
		}
		if err != nil {
			return err
		}

		input := strings.TrimSpace(line)
		switch strings.ToLower(input) {
		case "":
			continue
		case "q", "quit", "cancel":
			return cancel(flow, rl)
		case "b", "back":
			if err := flow.OnBackspace(); err != nil {
				return err
			}
			term.render()
			continue
		}

		if done, err := feed(ctx, flow, term, input); err != nil || done {
			return err
		}
	}
}

// feed enters each character of input as a digit and renders after every keypress.
func feed(ctx context.Context, flow *passcode.Flow, term *terminal, input string) (bool, error) {
	for _, r := range input {
		if r < '0' || r > '9' {
			fmt.Fprintf(term.out, "ignored %q: digits only\n", r)
			continue
		}
		_, err := flow.OnDigit(ctx, int(r-'0'))
		if err != nil {
			return false, err
		}
		term.render()
		if flow.State().Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func cancel(flow *passcode.Flow, rl *readline.Instance) error {
	if err := flow.Cancel(); err != nil && !errors.Is(err, passcode.ErrFlowClosed) {
		return err
	}
	fmt.Fprintln(rl.Stdout(), "cancelled")
	return nil
}
