package serverapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gqljoin/internal/compiler"
	"gqljoin/internal/gqlrequest"
	"gqljoin/internal/logging"
	"gqljoin/internal/middleware"
	"gqljoin/internal/planner"
	"gqljoin/internal/schema"
	"gqljoin/internal/schemarefresh"
)

const schemaReloadTimeout = 15 * time.Second

type compileResponse struct {
	*planner.CompiledQuery
	Cached            bool   `json:"cached"`
	OperationHash     string `json:"operation_hash,omitempty"`
	SchemaFingerprint string `json:"schema_fingerprint"`
}

func compileHandler(comp *compiler.Compiler, maxBodyBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env, err := gqlrequest.DecodeEnvelope(r, maxBodyBytes)
		if err != nil {
			status, code := http.StatusBadRequest, "invalid_request"
			if errors.Is(err, gqlrequest.ErrBodyTooLarge) {
				status, code = http.StatusRequestEntityTooLarge, "body_too_large"
			}
			middleware.WriteError(w, status, middleware.ErrorDetail{Code: code, Message: err.Error()})
			return
		}

		result, err := comp.Compile(r.Context(), env.Query, env.OperationName)
		if err != nil {
			info := compiler.Classify(err)
			detail := middleware.ErrorDetail{
				Code:    info.Code,
				Message: info.Message,
				Field:   info.Field,
				Path:    info.Path,
			}
			if info.Internal && info.Code == compiler.CodeInternal {
				detail.Message = "internal error"
			}
			middleware.WriteError(w, compileErrorStatus(info), detail)
			return
		}

		middleware.WriteJSON(w, http.StatusOK, compileResponse{
			CompiledQuery:     result.Query,
			Cached:            result.Cached,
			OperationHash:     result.OperationHash,
			SchemaFingerprint: result.Fingerprint,
		})
	}
}

func compileErrorStatus(info compiler.ErrorInfo) int {
	switch info.Code {
	case compiler.CodeEmptyQuery, compiler.CodeParseError:
		return http.StatusBadRequest
	case compiler.CodeSchemaNotReady:
		return http.StatusServiceUnavailable
	case compiler.CodeCanceled:
		return http.StatusRequestTimeout
	case compiler.CodeTimeout:
		return http.StatusGatewayTimeout
	case compiler.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

type schemaStatus struct {
	Fingerprint string    `json:"fingerprint"`
	Types       int       `json:"types"`
	RootFields  []string  `json:"root_fields"`
	BuiltAt     time.Time `json:"built_at"`
}

type healthResponse struct {
	Status string        `json:"status"`
	Schema *schemaStatus `json:"schema,omitempty"`
}

func healthHandler(manager *schemarefresh.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())

		snapshot := manager.CurrentSnapshot()
		if snapshot == nil || snapshot.Registry == nil {
			reqLogger.Error("health check failed", slog.String("check", "schema"))
			middleware.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy"})
			return
		}

		reqLogger.Debug("health check passed")
		middleware.WriteJSON(w, http.StatusOK, healthResponse{
			Status: "healthy",
			Schema: &schemaStatus{
				Fingerprint: snapshot.Fingerprint,
				Types:       len(snapshot.Registry.TypeNames()),
				RootFields:  snapshot.Registry.RootFields(),
				BuiltAt:     snapshot.BuiltAt.UTC(),
			},
		})
	}
}

// schemaHandler describes the published registry so clients can see which
// fields are selectable.
func schemaHandler(manager *schemarefresh.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		reg := manager.Registry()
		if reg == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrorDetail{
				Code:    compiler.CodeSchemaNotReady,
				Message: compiler.ErrSchemaNotReady.Error(),
			})
			return
		}
		middleware.WriteJSON(w, http.StatusOK, schema.Describe(reg))
	}
}

type reloadResponse struct {
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint"`
	Changed     bool   `json:"changed"`
}

func schemaReloadHandler(manager *schemarefresh.Manager, comp *compiler.Compiler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		reqLogger.Info("admin endpoint accessed",
			slog.String("operation", "schema_reload"),
			slog.String("remote_addr", r.RemoteAddr),
		)

		previous := manager.CurrentSnapshot()
		refreshCtx, cancel := context.WithTimeout(r.Context(), schemaReloadTimeout)
		defer cancel()

		snapshot, err := manager.RefreshNow(refreshCtx)
		if err != nil {
			reqLogger.Error("schema reload failed", slog.String("error", err.Error()))
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorDetail{
				Code:    "schema_reload_failed",
				Message: "schema reload failed",
			})
			return
		}

		changed := previous == nil || previous.Fingerprint != snapshot.Fingerprint
		if changed {
			// Entries keyed by the old fingerprint can never hit again.
			comp.PurgeCache()
		}
		reqLogger.Info("schema reloaded successfully",
			slog.String("fingerprint", snapshot.Fingerprint),
			slog.Bool("changed", changed),
		)
		middleware.WriteJSON(w, http.StatusOK, reloadResponse{
			Status:      "ok",
			Fingerprint: snapshot.Fingerprint,
			Changed:     changed,
		})
	}
}
