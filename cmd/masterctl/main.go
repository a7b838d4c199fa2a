package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/danmuck/unimaster/internal/config"
	"github.com/danmuck/unimaster/internal/logging"
	"github.com/danmuck/unimaster/internal/master"
	"github.com/danmuck/unimaster/internal/storage"
)

func main() {
	configPath := flag.String("config", "master.toml", "path to the master config file")
	account := flag.String("account", "", "create this account interactively and exit")
	gmLevel := flag.Int("gm-level", 9, "gm level assigned with -account")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	if *account != "" {
		if err := createAccount(cfg, *account, *gmLevel); err != nil {
			fatal(err)
		}
		fmt.Printf("Account %q created\n", *account)
		return
	}

	var flusher master.Flusher
	if cfg.LogDir != "" {
		sink, err := logging.AttachFileSink(cfg.LogDir)
		if err != nil {
			fatal(err)
		}
		defer sink.Close()
		flusher = sink
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := master.NewService(ctx, cfg, flusher)
	if err != nil {
		fatal(err)
	}
	if err := svc.Run(ctx); err != nil {
		fatal(err)
	}
}

// createAccount prompts twice for a password with echo disabled and stores
// the bcrypt hash. Existing accounts are never overwritten.
func createAccount(cfg config.Config, name string, gmLevel int) error {
	fmt.Print("Password: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	fmt.Print("Confirm password: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	if len(first) == 0 {
		return errors.New("password must not be blank")
	}
	if !bytes.Equal(first, second) {
		return errors.New("passwords do not match")
	}

	hash, err := bcrypt.GenerateFromPassword(first, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateAccount(context.Background(), name, string(hash), gmLevel); err != nil {
		if errors.Is(err, storage.ErrAccountExists) {
			return fmt.Errorf("account %q already exists", name)
		}
		return err
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "masterctl: %v\n", err)
	os.Exit(1)
}
