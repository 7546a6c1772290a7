package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/janpfeifer/GoOracle/internal/api"
	"github.com/janpfeifer/GoOracle/internal/frontend"
	"github.com/janpfeifer/GoOracle/internal/game"
	"github.com/janpfeifer/GoOracle/internal/store"
	"github.com/janpfeifer/GoOracle/internal/table"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

// Options configure Run.
type Options struct {
	// Tables configures every table the server opens. Its OnFinish hook is chained after the
	// results store, if any.
	Tables table.Options

	// Store, if set, records every finished game and serves /api/results.
	Store *store.Store

	// WebDir holds the static files served under /web/.
	WebDir string
}

// Run starts the server and blocks until the context is canceled.
// If addr is empty, the server listens on a random local port.
// If started is not nil, the server state is sent to it once the server is listening.
func Run(ctx context.Context, addr string, started chan<- *ServerState, opts ...Options) error {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.WebDir == "" {
		o.WebDir = "web"
	}

	// Initialize global client state for server-side prerendering without panic
	frontend.InitState()

	tableOpts := o.Tables
	if o.Store != nil {
		tableOpts.OnFinish = chainFinish(o.Store.FinishHook(), tableOpts.OnFinish)
	}
	serverState := NewServerState(tableOpts)

	// Register go-app routes so the server knows how to prerender them
	frontend.RegisterRoutes()

	// The web assets and the compiled webassembly
	// are served natively by the go-app framework
	h := &app.Handler{
		Name:        "GoOracle",
		Description: "Clock solitaire, the oracle of the thirteen piles",
		Styles: []string{
			"/web/css/base.css",
			"/web/css/main.css",
		},
	}

	var results api.Results
	if o.Store != nil {
		results = o.Store
	}
	apiHandler := api.New(api.NewHandler(serverState.Tables, results))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", serverState.HandleWS)
	mux.HandleFunc("/test/game", serverState.HandleTestGame)
	mux.Handle("/api/", apiHandler)
	mux.Handle("/web/", http.StripPrefix("/web/", http.FileServer(http.Dir(o.WebDir))))
	mux.Handle("/", h)

	if addr == "" {
		addr = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	serverState.Address = listener.Addr().String()

	srv := &http.Server{Handler: mux}
	go func() {
		klog.Infof("Server started on %s", serverState.Address)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Errorf("Server error: %v", err)
		}
	}()
	if started != nil {
		started <- serverState
	}

	<-ctx.Done()

	// Graceful shutdown with 5 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	klog.Infof("Shutting down server...")
	serverState.Tables.CloseAll()
	return srv.Shutdown(shutdownCtx)
}

func chainFinish(hooks ...table.FinishFunc) table.FinishFunc {
	return func(tableID string, mode game.Mode, r game.Result) {
		for _, hook := range hooks {
			if hook != nil {
				hook(tableID, mode, r)
			}
		}
	}
}
