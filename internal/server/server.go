package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"cleanflow/internal/domain"
	"cleanflow/internal/engine"
	"cleanflow/internal/engine/access"
	"cleanflow/internal/notify"
	"cleanflow/internal/repo"
	"cleanflow/internal/tracker"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Tracker  tracker.Tracker
	Notifier *notify.Notifier
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"transition pending -> completed: not a valid successor"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the CleanFlow API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors are 400 bad_request; 422 is
			// reserved for lifecycle rule violations.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("CleanFlow API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAuth(group, cfg.Engine, cfg.Auth)
	registerMe(group, cfg.Engine)
	registerResidents(group, cfg.Engine)
	registerCollectors(group, cfg.Engine, cfg.Tracker)
	registerWorkItems(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerStream(router, basePath, cfg.Engine, cfg.Notifier)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, access.ErrUnauthenticated) {
		return newAPIError(http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	}
	var pe access.PendingApprovalError
	if errors.As(err, &pe) {
		return newAPIError(http.StatusForbidden, "pending_approval", err.Error(), map[string]any{"account_id": pe.AccountID})
	}
	var fe access.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"role": fe.Role})
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": ve.Field, "reason": ve.Reason})
	}
	var re tracker.RangeError
	if errors.As(err, &re) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": re.Field})
	}
	var te engine.TransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusUnprocessableEntity, "invalid_transition", err.Error(), map[string]any{"from": te.From, "to": te.To})
	}
	var ce engine.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), map[string]any{"work_item_id": ce.ItemID})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "invalid_transition"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func authorize(ctx context.Context, e engine.Engine, required ...domain.Role) (access.Identity, huma.StatusError) {
	accountID, authErr := accountIDFromContext(ctx)
	if authErr != nil {
		return access.Identity{}, authErr
	}
	ident, err := e.Gate.Authorize(ctx, accountID, required...)
	if err != nil {
		return access.Identity{}, handleError(err)
	}
	return ident, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAuth(api huma.API, e engine.Engine, cfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/auth/signup",
		Summary:       "Register a resident account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body SignupRequest `json:"body"`
	}) (*struct {
		Body ProfileResponse `json:"body"`
	}, error) {
		p, err := e.SignupResident(ctx, engine.SignupOptions{
			FullName: input.Body.FullName,
			Email:    input.Body.Email,
			Phone:    input.Body.Phone,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProfileResponse `json:"body"`
		}{Body: profileResponse(p)}, nil
	})

	if !cfg.DevLogin {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "Mint a token by email (development only)",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Email string `json:"email" format:"email"`
		} `json:"body"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		if input.Body.Email == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email is required", nil)
		}
		p, err := e.Repo.GetProfileByEmail(ctx, input.Body.Email)
		if err != nil {
			return nil, handleError(err)
		}
		token, err := MintToken(cfg.JWTSecret, p.ID, cfg.TokenTTL)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: TokenResponse{Token: token, AccountID: p.ID}}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	type meResponse struct {
		Profile  ProfileResponse `json:"profile"`
		Role     domain.Role     `json:"role"`
		Approved bool            `json:"approved"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current account",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body meResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ident, err := e.Gate.Authorize(ctx, accountID)
		if err != nil {
			// Unapproved residents still see their own holding state.
			var pe access.PendingApprovalError
			if !errors.As(err, &pe) {
				return nil, handleError(err)
			}
		}
		p, err := e.Repo.GetProfile(ctx, accountID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body meResponse `json:"body"`
		}{Body: meResponse{Profile: profileResponse(p), Role: ident.Role, Approved: ident.Approved}}, nil
	})
}

func registerResidents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-residents",
		Method:      http.MethodGet,
		Path:        "/residents",
		Summary:     "List resident profiles",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProfileResponse `json:"body"`
	}, error) {
		if _, authErr := authorize(ctx, e, domain.RoleAdmin); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListProfilesByRole(ctx, domain.RoleResident)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProfileResponse `json:"body"`
		}{Body: mapProfiles(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-resident",
		Method:      http.MethodPost,
		Path:        "/residents/{id}/approve",
		Summary:     "Approve a resident",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProfileResponse `json:"body"`
	}, error) {
		ident, authErr := authorize(ctx, e, domain.RoleAdmin)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.ApproveResident(ctx, ident, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProfileResponse `json:"body"`
		}{Body: profileResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-resident",
		Method:      http.MethodDelete,
		Path:        "/residents/{id}",
		Summary:     "Delete a resident account",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		ident, authErr := authorize(ctx, e, domain.RoleAdmin)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteResident(ctx, ident, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerCollectors(api huma.API, e engine.Engine, t tracker.Tracker) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-collector",
		Method:        http.MethodPost,
		Path:          "/collectors",
		Summary:       "Create a collector account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateCollectorRequest `json:"body"`
	}) (*struct {
		Body CollectorResponse `json:"body"`
	}, error) {
		ident, authErr := authorize(ctx, e, domain.RoleAdmin)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateCollector(ctx, ident, engine.CollectorCreateOptions{
			FullName:      input.Body.FullName,
			Email:         input.Body.Email,
			Phone:         input.Body.Phone,
			VehicleNumber: input.Body.VehicleNumber,
			VehicleType:   input.Body.VehicleType,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CollectorResponse `json:"body"`
		}{Body: collectorResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-collectors",
		Method:      http.MethodGet,
		Path:        "/collectors",
		Summary:     "List collectors",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Located   bool `query:"located"`
		Available bool `query:"available"`
	}) (*struct {
		Body []CollectorResponse `json:"body"`
	}, error) {
		if _, authErr := authorize(ctx, e); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListCollectors(ctx, repo.CollectorFilters{
			OnlyLocated:   input.Located,
			OnlyAvailable: input.Available,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CollectorResponse `json:"body"`
		}{Body: mapCollectors(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-availability",
		Method:      http.MethodPatch,
		Path:        "/collectors/availability",
		Summary:     "Set own availability",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body AvailabilityRequest `json:"body"`
	}) (*struct {
		Body CollectorResponse `json:"body"`
	}, error) {
		ident, authErr := authorize(ctx, e, domain.RoleCollector)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.SetAvailability(ctx, ident, input.Body.IsAvailable)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CollectorResponse `json:"body"`
		}{Body: collectorResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-position",
		Method:      http.MethodPost,
		Path:        "/collectors/position",
		Summary:     "Report own position",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body PositionRequest `json:"body"`
	}) (*struct {
		Body CollectorResponse `json:"body"`
	}, error) {
		ident, authErr := authorize(ctx, e, domain.RoleCollector)
		if authErr != nil {
			return nil, authErr
		}
		c, err := t.Report(ctx, ident, input.Body.Lat, input.Body.Lng)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CollectorResponse `json:"body"`
		}{Body: collectorResponse(c)}, nil
	})
}

// visibleTo applies the read scope: residents see their own items,
// collectors the items assigned to them, administrators everything.
func visibleTo(ident access.Identity, collectorID string, w domain.WorkItem) bool {
	switch ident.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleResident:
		return w.OwnerID == ident.AccountID
	case domain.RoleCollector:
		return w.CollectorID != nil && *w.CollectorID == collectorID
	}
	return false
}

func registerWorkItems(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-work-item",
		Method:        http.MethodPost,
		Path:          "/work-items",
		Summary:       "Create a booking or report",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateWorkItemRequest `json:"body"`
	}) (*struct {
		Body WorkItemResponse `json:"body"`
	}, error) {
		ident, authErr := authorize(ctx, e, domain.RoleResident)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.CreateWorkItem(ctx, ident, engine.WorkItemCreateOptions{
			Kind:    input.Body.Kind,
			Address: input.Body.Address,
			Lat:     input.Body.Lat,
			Lng:     input.Body.Lng,
			Details: input.Body.Details,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkItemResponse `json:"body"`
		}{Body: workItemResponse(w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-work-items",
		Method:      http.MethodGet,
		Path:        "/work-items",
		Summary:     "List work items in the caller's scope",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Kind   domain.Kind   `query:"kind" enum:"booking,report,"`
		Status domain.Status `query:"status" enum:"pending,assigned,in_progress,completed,cleared,rejected,"`
		Active bool          `query:"active"`
	}) (*struct {
		Body []WorkItemResponse `json:"body"`
	}, error) {
		ident, authErr := authorize(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		filters := repo.WorkItemFilters{
			Kind:            input.Kind,
			Status:          input.Status,
			ExcludeTerminal: input.Active,
		}
		switch ident.Role {
		case domain.RoleResident:
			filters.OwnerID = ident.AccountID
		case domain.RoleCollector:
			c, err := e.Repo.GetCollectorByAccount(ctx, ident.AccountID)
			if err != nil {
				return nil, handleError(err)
			}
			filters.CollectorID = c.ID
		}
		items, err := e.Repo.ListWorkItems(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []WorkItemResponse `json:"body"`
		}{Body: mapWorkItems(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-work-item",
		Method:      http.MethodGet,
		Path:        "/work-items/{id}",
		Summary:     "Get a work item",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body WorkItemResponse `json:"body"`
	}, error) {
		ident, authErr := authorize(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.Repo.GetWorkItem(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		collectorID := ""
		if ident.Role == domain.RoleCollector {
			c, err := e.Repo.GetCollectorByAccount(ctx, ident.AccountID)
			if err != nil {
				return nil, handleError(err)
			}
			collectorID = c.ID
		}
		if !visibleTo(ident, collectorID, w) {
			// Hidden items read as absent, not forbidden.
			return nil, newAPIError(http.StatusNotFound, "not_found", "work item not found", nil)
		}
		return &struct {
			Body WorkItemResponse `json:"body"`
		}{Body: workItemResponse(w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-work-item",
		Method:      http.MethodPost,
		Path:        "/work-items/{id}/assign",
		Summary:     "Assign a pending work item to a collector",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body AssignRequest `json:"body"`
	}) (*struct {
		Body WorkItemResponse `json:"body"`
	}, error) {
		ident, authErr := authorize(ctx, e, domain.RoleAdmin)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.CollectorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "collector_id is required", nil)
		}
		w, err := e.Assign(ctx, ident, input.ID, input.Body.CollectorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkItemResponse `json:"body"`
		}{Body: workItemResponse(w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-work-item-status",
		Method:      http.MethodPost,
		Path:        "/work-items/{id}/status",
		Summary:     "Advance a work item's lifecycle",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body StatusRequest `json:"body"`
	}) (*struct {
		Body WorkItemResponse `json:"body"`
	}, error) {
		ident, authErr := authorize(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.Transition(ctx, ident, input.ID, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkItemResponse `json:"body"`
		}{Body: workItemResponse(w)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List events after a cursor",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Cursor int64 `query:"cursor"`
		Limit  int   `query:"limit" default:"100"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		if _, authErr := authorize(ctx, e, domain.RoleAdmin); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.EventsAfter(ctx, input.Limit, input.Cursor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/signup"):    true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>CleanFlow API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}
