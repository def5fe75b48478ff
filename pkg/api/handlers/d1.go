package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

// RowStoreHandler exposes the row-store manager under /api/v1/d1.
type RowStoreHandler struct {
	manager *rowstore.Manager
}

// NewRowStoreHandler creates a new RowStoreHandler.
func NewRowStoreHandler(manager *rowstore.Manager) *RowStoreHandler {
	return &RowStoreHandler{manager: manager}
}

// QueryRequest is the request body for POST /d1/{db}/query.
type QueryRequest struct {
	SQL    string          `json:"sql" validate:"required"`
	Params rowstore.Params `json:"params"`
	Limit  *int            `json:"limit,omitempty" validate:"omitempty,gte=0"`
	Offset *int            `json:"offset,omitempty" validate:"omitempty,gte=0"`
}

// ExecuteRequest is the request body for POST /d1/{db}/execute.
type ExecuteRequest struct {
	SQL    string          `json:"sql" validate:"required"`
	Params rowstore.Params `json:"params"`
}

// BatchRequest is the request body for POST /d1/{db}/batch.
type BatchRequest struct {
	Statements []rowstore.Statement `json:"statements" validate:"required,min=1,dive"`
}

// CreateTableRequest is the request body for POST /d1/{db}/tables.
type CreateTableRequest struct {
	Name        string               `json:"name" validate:"required"`
	Schema      rowstore.TableSchema `json:"schema"`
	IfNotExists bool                 `json:"if_not_exists,omitempty"`
}

// DatabasesData is the payload of GET /d1/databases.
type DatabasesData struct {
	Databases []string `json:"databases"`
}

// ListDatabases handles GET /d1/databases.
func (h *RowStoreHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	names := h.manager.ListInstances()
	writeResult(w, envelope.OK(DatabasesData{Databases: names}, &envelope.Meta{Count: envelope.Int(len(names))}), http.StatusOK)
}

// Query handles POST /d1/{db}/query.
func (h *RowStoreHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res, err := h.manager.Query(r.Context(), chi.URLParam(r, "db"), req.SQL, rowstore.QueryOptions{
		Params: req.Params,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	respond(w, r, res, err, http.StatusOK)
}

// Execute handles POST /d1/{db}/execute.
func (h *RowStoreHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res, err := h.manager.Execute(r.Context(), chi.URLParam(r, "db"), req.SQL, req.Params)
	respond(w, r, res, err, http.StatusOK)
}

// Batch handles POST /d1/{db}/batch.
func (h *RowStoreHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res, err := h.manager.Batch(r.Context(), chi.URLParam(r, "db"), req.Statements)
	respond(w, r, res, err, http.StatusOK)
}

// ListTables handles GET /d1/{db}/tables.
func (h *RowStoreHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.ListTables(r.Context(), chi.URLParam(r, "db"))
	respond(w, r, res, err, http.StatusOK)
}

// CreateTable handles POST /d1/{db}/tables.
func (h *RowStoreHandler) CreateTable(w http.ResponseWriter, r *http.Request) {
	var req CreateTableRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res, err := h.manager.CreateTable(r.Context(), chi.URLParam(r, "db"), req.Name, req.Schema, req.IfNotExists)
	respond(w, r, res, err, http.StatusCreated)
}

// GetTable handles GET /d1/{db}/tables/{table}.
func (h *RowStoreHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.GetTableInfo(r.Context(), chi.URLParam(r, "db"), chi.URLParam(r, "table"))
	respond(w, r, res, err, http.StatusOK)
}

// GetTableIndexes handles GET /d1/{db}/tables/{table}/indexes.
func (h *RowStoreHandler) GetTableIndexes(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.GetTableIndexes(r.Context(), chi.URLParam(r, "db"), chi.URLParam(r, "table"))
	respond(w, r, res, err, http.StatusOK)
}

// DeleteTable handles DELETE /d1/{db}/tables/{table}.
func (h *RowStoreHandler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.DeleteTable(r.Context(), chi.URLParam(r, "db"), chi.URLParam(r, "table"))
	respond(w, r, res, err, http.StatusOK)
}

// Export handles POST /d1/{db}/export.
func (h *RowStoreHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req rowstore.ExportOptions
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res, err := h.manager.ExportData(r.Context(), chi.URLParam(r, "db"), req)
	respond(w, r, res, err, http.StatusOK)
}

// Import handles POST /d1/{db}/import.
func (h *RowStoreHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req rowstore.ImportOptions
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res, err := h.manager.ImportData(r.Context(), chi.URLParam(r, "db"), req)
	respond(w, r, res, err, http.StatusOK)
}
