package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/micro-ha/ble-scanner/internal/http/handlers"
)

// NewRouter builds full HTTP routing tree for backend API and static frontend.
func NewRouter(api *handlers.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON)
	r.Use(RequestLogger(api))

	// Long-lived websocket; kept outside the request timeout.
	r.Get("/api/scan/stream", api.ScanStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(20 * time.Second))

		r.Get("/health", api.Health)
		r.Route("/api", func(apiRouter chi.Router) {
			apiRouter.Post("/users", api.CreateUser)
			apiRouter.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
				api.GetUser(w, r, chi.URLParam(r, "id"))
			})
			apiRouter.Post("/auth/login", api.Login)

			apiRouter.Get("/ble-devices", api.ListDevices)
			apiRouter.Get("/ble-devices/target", api.ListTargetDevices)
			apiRouter.Post("/ble-devices", api.UpsertDevice)
			apiRouter.Get("/ble-devices/{id}", func(w http.ResponseWriter, r *http.Request) {
				api.GetDevice(w, r, chi.URLParam(r, "id"))
			})
			apiRouter.Put("/ble-devices/{id}", func(w http.ResponseWriter, r *http.Request) {
				api.UpdateDevice(w, r, chi.URLParam(r, "id"))
			})
			apiRouter.Delete("/ble-devices/{id}", func(w http.ResponseWriter, r *http.Request) {
				api.DeleteDevice(w, r, chi.URLParam(r, "id"))
			})

			apiRouter.Get("/scan", api.ScanStatus)
			apiRouter.Post("/scan/start", api.StartScan)
			apiRouter.Post("/scan/stop", api.StopScan)
			apiRouter.Post("/scan/clear", api.ClearScan)
			apiRouter.Get("/scan/devices", api.ScanDevices)
		})

		r.Get("/*", api.Static)
		r.Get("/", api.Static)
	})
	return r
}

// RunServer starts and gracefully stops HTTP server with context cancellation.
func RunServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
