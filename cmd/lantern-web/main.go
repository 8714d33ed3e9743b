package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kmorel/lantern"
)

func main() {
	dbPath := flag.String("db", "./lantern.db", "path to SQLite database")
	addr := flag.String("addr", ":8484", "listen address")
	cdnBaseURL := flag.String("cdn", "", "attachment CDN base URL")
	jwtSecret := flag.String("jwt-secret", os.Getenv("LANTERN_JWT_SECRET"), "HMAC secret for viewer tokens (empty disables signed-in viewers)")
	flag.Parse()

	engine, err := lantern.NewEngine(lantern.EngineConfig{
		DBPath:     *dbPath,
		CDNBaseURL: *cdnBaseURL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "lantern-web: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	mux := newRouter(engine, *jwtSecret)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      logging(recovery(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("lantern-web: listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("lantern-web: %v", err)
		}
	}()

	<-done
	log.Println("lantern-web: shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("lantern-web: shutdown error: %v", err)
	}
	log.Println("lantern-web: stopped")
}
