package progress

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Serve starts the Hub's broadcast loop and an HTTP server on addr in the
// background, returning a shutdown function the caller must invoke to
// release both.
func Serve(addr string, hub *Hub) func() {
	go hub.Run()

	srv := &http.Server{Addr: addr, Handler: Router(hub)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("progress: server error: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("progress: shutdown error: %v", err)
		}
	}
}
