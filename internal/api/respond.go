package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/model"
)

const (
	headerUser    = "X-User-ID"
	headerCompany = "X-Company-ID"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusOf maps an error kind to its HTTP status.
func statusOf(kind farmerr.Kind) int {
	switch kind {
	case farmerr.Validation:
		return http.StatusBadRequest
	case farmerr.NotFound:
		return http.StatusNotFound
	case farmerr.Precondition:
		return http.StatusConflict
	case farmerr.Integrity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the caller's language. Unclassified errors
// are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := farmerr.KindOf(err)
	status := statusOf(kind)
	msg := farmerr.Localize(err, farmerr.MatchLanguage(r.Header.Get("Accept-Language")))
	if kind == farmerr.Unknown {
		zap.L().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kind.String()})
}

func requestContext(r *http.Request) model.RequestContext {
	rc := model.RequestContext{
		UserID: r.Header.Get(headerUser),
		Lang:   farmerr.MatchLanguage(r.Header.Get("Accept-Language")).String(),
	}
	if id, err := strconv.ParseInt(r.Header.Get(headerCompany), 10, 64); err == nil {
		rc.CompanyID = id
	}
	return rc
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, farmerr.Invalid(farmerr.MsgInvalidField, name, raw)
	}
	return id, nil
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return farmerr.Invalid(farmerr.MsgInvalidField, "body", err.Error())
	}
	return nil
}

func invalidDate(raw string) error {
	return farmerr.Invalid(farmerr.MsgInvalidField, "date", raw)
}
