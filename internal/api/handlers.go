package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/farm-ledger/internal/harvest"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/workflow"
)

// create decodes a body into v, runs fn and answers 201 with v.
func create[T any](w http.ResponseWriter, r *http.Request, fn func(v *T) error) {
	var v T
	if err := decode(r, &v); err != nil {
		writeError(w, r, err)
		return
	}
	if err := fn(&v); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &v)
}

// fetch answers 200 with the result of fn for the {id} path parameter.
func fetch[T any](w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (T, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func respondOutcome(w http.ResponseWriter, r *http.Request, out model.Outcome, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type idVerbFunc func(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error)

func (s *Server) idVerb(fn idVerbFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		out, err := fn(r.Context(), requestContext(r), id)
		respondOutcome(w, r, out, err)
	}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) projectReasonVerb(fn func(ctx context.Context, rc model.RequestContext, id int64, reason string) (model.Outcome, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req reasonRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		out, err := fn(r.Context(), requestContext(r), id, req.Reason)
		respondOutcome(w, r, out, err)
	}
}

// --- Hierarchy ---

func (s *Server) createFarm(w http.ResponseWriter, r *http.Request) {
	create(w, r, func(f *model.Farm) error { return s.svc.CreateFarm(r.Context(), requestContext(r), f) })
}

func (s *Server) createSector(w http.ResponseWriter, r *http.Request) {
	create(w, r, func(v *model.Sector) error { return s.svc.CreateSector(r.Context(), v) })
}

func (s *Server) createUnit(w http.ResponseWriter, r *http.Request) {
	create(w, r, func(v *model.Unit) error { return s.svc.CreateUnit(r.Context(), v) })
}

func (s *Server) createHouse(w http.ResponseWriter, r *http.Request) {
	create(w, r, func(v *model.House) error { return s.svc.CreateHouse(r.Context(), v) })
}

func (s *Server) farmTree(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, s.svc.FarmTree)
}

func (s *Server) farmSummary(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, s.svc.FarmSummary)
}

// --- Projects ---

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	create(w, r, func(p *model.Project) error { return s.svc.CreateProject(r.Context(), requestContext(r), p) })
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, s.svc.GetProject)
}

func (s *Server) projectSummary(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, func(ctx context.Context, id int64) (workflow.ProjectSummary, error) {
		return s.svc.ProjectSummary(ctx, requestContext(r), id)
	})
}

func (s *Server) projectHistory(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, func(ctx context.Context, id int64) ([]workflow.HistoryRow, error) {
		return s.svc.ProjectHistory(ctx, requestContext(r), id)
	})
}

func (s *Server) projectCosts(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, s.svc.ProjectCosts)
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, s.svc.Assignments)
}

func (s *Server) assignHouse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	create(w, r, func(a *model.HouseAssignment) error {
		a.ProjectID = id
		return s.svc.AssignHouse(r.Context(), a)
	})
}

func (s *Server) houseAllocations(w http.ResponseWriter, r *http.Request) {
	house, err := pathID(r, "house")
	if err != nil {
		writeError(w, r, err)
		return
	}
	fetch(w, r, func(ctx context.Context, id int64) ([]model.AllocationLine, error) {
		return s.svc.HouseAllocations(ctx, id, house)
	})
}

func (s *Server) assignmentStats(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, s.svc.AssignmentStats)
}

func (s *Server) harvestCumulatives(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, s.svc.HarvestCumulatives)
}

// --- Costs ---

func (s *Server) createCost(w http.ResponseWriter, r *http.Request) {
	create(w, r, func(c *model.Cost) error { return s.svc.CreateCost(r.Context(), requestContext(r), c) })
}

func (s *Server) getCost(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, s.svc.GetCost)
}

func (s *Server) updateCost(w http.ResponseWriter, r *http.Request) {
	var patch workflow.CostPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	fetch(w, r, func(ctx context.Context, id int64) (*model.Cost, error) {
		return s.svc.UpdateDraftCost(ctx, requestContext(r), id, patch)
	})
}

func (s *Server) deleteCost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteCost(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) costAllocations(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, s.svc.CostAllocations)
}

// --- Harvest ---

type harvestRequest struct {
	AssignmentID int64   `json:"assignment_id"`
	Date         string  `json:"date"`
	Quantity     float64 `json:"quantity"`
	Notes        string  `json:"notes"`
}

func (s *Server) recordHarvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := harvest.RecordInput{AssignmentID: req.AssignmentID, Quantity: req.Quantity, Notes: req.Notes}
	if req.Date != "" {
		d, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			writeError(w, r, invalidDate(req.Date))
			return
		}
		in.Date = d
	}
	e, err := s.svc.RecordHarvest(r.Context(), requestContext(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) getHarvest(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, s.svc.GetHarvest)
}

type quantityRequest struct {
	Quantity float64 `json:"quantity"`
}

func (s *Server) updateHarvest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req quantityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.svc.UpdateHarvestQuantity(r.Context(), requestContext(r), id, req.Quantity)
	respondOutcome(w, r, out, err)
}

// --- Orders ---

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	create(w, r, func(o *model.ProductOrder) error { return s.svc.CreateOrder(r.Context(), requestContext(r), o) })
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	fetch(w, r, s.svc.GetOrder)
}

type journalRequest struct {
	EntryID string `json:"entry_id"`
}

func (s *Server) linkJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req journalRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.svc.LinkOrderJournal(r.Context(), requestContext(r), id, req.EntryID)
	respondOutcome(w, r, out, err)
}

// --- Notes ---

func (s *Server) notes(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	fetch(w, r, func(ctx context.Context, id int64) ([]model.Note, error) {
		return s.svc.Notes(ctx, entity, id)
	})
}
