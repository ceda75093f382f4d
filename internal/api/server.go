// Package api exposes the farm action verbs as a JSON HTTP API.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/farm-ledger/internal/config"
	"github.com/sells-group/farm-ledger/internal/metrics"
	"github.com/sells-group/farm-ledger/internal/workflow"
)

// Server routes HTTP requests to the workflow service.
type Server struct {
	svc     *workflow.Service
	router  chi.Router
	metrics *metrics.Metrics
	origins []string
}

// NewServer builds the router. A nil m leaves /metrics unmounted.
func NewServer(svc *workflow.Service, cfg config.ServerConfig, m *metrics.Metrics) *Server {
	s := &Server{svc: svc, router: chi.NewRouter(), metrics: m, origins: cfg.AllowedOrigins}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type", headerUser, headerCompany},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/farms", s.createFarm)
		r.Get("/farms/{id}/tree", s.farmTree)
		r.Get("/farms/{id}/summary", s.farmSummary)
		r.Post("/sectors", s.createSector)
		r.Post("/units", s.createUnit)
		r.Post("/houses", s.createHouse)

		r.Post("/projects", s.createProject)
		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", s.getProject)
			r.Get("/summary", s.projectSummary)
			r.Get("/history", s.projectHistory)
			r.Get("/costs", s.projectCosts)
			r.Get("/assignments", s.listAssignments)
			r.Post("/assignments", s.assignHouse)
			r.Get("/houses/{house}/allocations", s.houseAllocations)
			r.Post("/start", s.idVerb(s.svc.StartProject))
			r.Post("/complete", s.idVerb(s.svc.CompleteProject))
			r.Post("/reset", s.idVerb(s.svc.ResetProject))
			r.Post("/update-avco", s.idVerb(s.svc.UpdateAVCO))
			r.Post("/pause", s.projectReasonVerb(s.svc.PauseProject))
			r.Post("/resume", s.projectReasonVerb(s.svc.ResumeProject))
			r.Post("/cancel", s.projectReasonVerb(s.svc.CancelProject))
		})

		r.Get("/assignments/{id}/stats", s.assignmentStats)
		r.Get("/assignments/{id}/cumulatives", s.harvestCumulatives)

		r.Post("/costs", s.createCost)
		r.Route("/costs/{id}", func(r chi.Router) {
			r.Get("/", s.getCost)
			r.Put("/", s.updateCost)
			r.Delete("/", s.deleteCost)
			r.Get("/allocations", s.costAllocations)
			r.Post("/post", s.idVerb(s.svc.PostCost))
			r.Post("/cancel", s.idVerb(s.svc.CancelCost))
			r.Post("/reset", s.idVerb(s.svc.ResetCostToDraft))
		})

		r.Post("/harvests", s.recordHarvest)
		r.Route("/harvests/{id}", func(r chi.Router) {
			r.Get("/", s.getHarvest)
			r.Patch("/", s.updateHarvest)
			r.Delete("/", s.idVerb(s.svc.DeleteHarvest))
			r.Post("/cancel", s.idVerb(s.svc.CancelHarvest))
			r.Post("/reinstate", s.idVerb(s.svc.ReinstateHarvest))
			r.Post("/recalculate", s.idVerb(s.svc.RecalculateHarvest))
			r.Post("/transfer", s.idVerb(s.svc.CreateHarvestTransfer))
			r.Post("/validate-transfer", s.idVerb(s.svc.ValidateHarvestTransfer))
		})

		r.Post("/orders", s.createOrder)
		r.Route("/orders/{id}", func(r chi.Router) {
			r.Get("/", s.getOrder)
			r.Post("/submit", s.idVerb(s.svc.SubmitOrder))
			r.Post("/owner-approve", s.idVerb(s.svc.OwnerApproveOrder))
			r.Post("/inventory-approve", s.idVerb(s.svc.InventoryApproveOrder))
			r.Post("/accounting-approve", s.idVerb(s.svc.AccountingApproveOrder))
			r.Post("/journal", s.linkJournal)
			r.Post("/cancel", s.idVerb(s.svc.CancelOrder))
			r.Post("/reset", s.idVerb(s.svc.ResetOrder))
		})

		r.Get("/notes/{entity}/{id}", s.notes)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
