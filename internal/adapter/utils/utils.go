package utils

import (
	"net/http"
	"sync"

	_ "github.com/akolanti/HybridRAG/cmd/api/docs"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/http-swagger"
)

var once sync.Once
var router *chi.Mux

func GetNewUUID() string {
	return uuid.New().String()
}

type RouterClient struct {
	Router *chi.Mux
}

func GetChiURLParam(request *http.Request, key string) string {
	return chi.URLParam(request, key)
}

// GetRoutePattern is the matched chi pattern, e.g. /status/{id}, used as a low cardinality metric label.
func GetRoutePattern(request *http.Request) string {
	if rc := chi.RouteContext(request.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return request.URL.Path
}

func GetRouter(allowedOrigins []string) RouterClient {
	once.Do(func() {
		router = chi.NewRouter()
		router.Use(chimw.Recoverer)
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Trace-Id"},
			ExposedHeaders:   []string{"X-Trace-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		InitSwagger(router)
		//register prometheus
		router.Handle("/metrics", promhttp.Handler())
	})

	return RouterClient{Router: router}
}

func InitSwagger(r *chi.Mux) {
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}
