package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"petnotify/internal/app"
	"petnotify/internal/config"
	"petnotify/internal/httpapi"
	"petnotify/internal/model"
)

func main() {
	var (
		cfgPath  string
		tokenFor int64
		tokenTTL time.Duration
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml or json")
	flag.Int64Var(&tokenFor, "token-for", 0, "print a bearer token for this user id and exit")
	flag.DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of a token minted with -token-for")
	flag.Parse()

	if tokenFor > 0 {
		if err := mintToken(cfgPath, model.UserID(tokenFor), tokenTTL); err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		_ = a.Stop(context.Background(), app.StopFatalError)
		os.Exit(1)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if err := a.Err(); err != nil && reason == app.StopFatalError {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func mintToken(cfgPath string, user model.UserID, ttl time.Duration) error {
	cfg, err := config.NewManager(cfgPath).Parse()
	if err != nil {
		return err
	}
	tok, err := httpapi.GenerateJWT(cfg.Auth.JWTSecret, user, ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
