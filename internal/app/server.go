package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tush00nka/schoolconnect_chat/internal/handler"
	"tush00nka/schoolconnect_chat/internal/pkg/auth"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Routes обработчики, которые монтирует сервер
type Routes struct {
	Rooms     *handler.RoomHandler
	Realtime  *handler.WSHandler
	Stats     handler.StatsSource
	Tokens    *auth.Manager
	Directory handler.Enroller
}

type Server struct {
	router  *mux.Router
	origins []string
	srv     *http.Server
}

func NewServer(routes Routes, allowedOrigins []string) *Server {
	router := mux.NewRouter()
	router.Use(handler.Logging)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ping", handler.Ping).Methods("GET", "OPTIONS")
	if routes.Stats != nil {
		api.HandleFunc("/stats", handler.Stats(routes.Stats)).Methods("GET", "OPTIONS")
	}

	// Остальное только с токеном
	secured := api.NewRoute().Subrouter()
	secured.Use(handler.Authenticate(routes.Tokens, routes.Directory))
	if routes.Rooms != nil {
		routes.Rooms.RegisterRoutes(secured)
	}
	if routes.Realtime != nil {
		routes.Realtime.RegisterRoutes(secured)
	}

	// Настройка Swagger
	swaggerHandler := httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // Важно: относительный путь
	)

	// Явно обслуживаем doc.json
	router.HandleFunc("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.json")
	})
	router.PathPrefix("/swagger/").Handler(swaggerHandler)

	return &Server{router: router, origins: allowedOrigins}
}

// Handler роутер с CORS
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(s.origins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
	)
	return cors(s.router)
}

// Start запускает сервер в фоне. Ошибка запуска приходит в канал.
func (s *Server) Start(port string) <-chan error {
	s.srv = &http.Server{
		Handler:           s.Handler(),
		Addr:              ":" + port,
		ReadHeaderTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Msg("server starting")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
