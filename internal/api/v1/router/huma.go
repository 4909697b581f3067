package router

import (
	"net/http"
	"os"
	"strings"

	"velora/internal/api/v1/handler"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers groups the operation handlers registered on the API.
type Handlers struct {
	Followups *handler.FollowupHandler
	Usage     *handler.UsageHandler
	Users     *handler.UserHandler
	Ingest    *handler.IngestHandler
	DLQ       *handler.DLQHandler
}

// pubsubPaths are pushed to by Pub/Sub and use its OIDC auth instead of user JWTs.
var pubsubPaths = map[string]bool{
	"/ingest/email": true,
	"/dlq/record":   true,
}

// SetupHumaAPI creates a Huma API instance on a Chi router
func SetupHumaAPI(
	authMiddleware func(http.Handler) http.Handler,
	pubsubAuthMiddleware func(http.Handler) http.Handler,
	logger zerolog.Logger,
) (*chi.Mux, huma.API) {
	chiRouter := chi.NewRouter()

	// Apply middleware based on path
	chiRouter.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := strings.TrimPrefix(r.URL.Path, "/v1")
			switch {
			case path == "/openapi.json" || path == "/openapi.yaml" || path == "/docs" || strings.HasPrefix(path, "/schemas"):
				next.ServeHTTP(w, r)
			case pubsubPaths[path]:
				pubsubAuthMiddleware(next).ServeHTTP(w, r)
			default:
				authMiddleware(next).ServeHTTP(w, r)
			}
		})
	})

	version := os.Getenv("GIT_COMMIT_SHA")
	if version == "" {
		version = "development"
	}

	humaConfig := huma.DefaultConfig("Velora Radar API v1", version)
	humaConfig.Info.Description = "Follow-up tracking, rate limits and cost reporting"
	humaConfig.Servers = []*huma.Server{{URL: "/v1"}}

	api := humachi.New(chiRouter, humaConfig)

	logger.Info().Str("version", version).Msg("Huma API initialized for /v1")
	return chiRouter, api
}

// RegisterRoutes registers all Huma operations
func RegisterRoutes(api huma.API, h Handlers, logger zerolog.Logger) {
	logger.Info().Msg("Registering routes")

	// ========== FOLLOWUP OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "listFollowups",
		Method:      http.MethodGet,
		Path:        "/followups",
		Summary:     "List followups",
		Description: "Lists the caller's followups ordered by due time, open ones by default",
		Tags:        []string{"followups"},
	}, h.Followups.ListFollowups)

	huma.Register(api, huma.Operation{
		OperationID:   "createFollowup",
		Method:        http.MethodPost,
		Path:          "/followups",
		Summary:       "Create a followup",
		Description:   "Creates a PENDING followup, or returns the open followup already tracking the thread. Rate limited per user; answers 429 with Retry-After",
		Tags:          []string{"followups"},
		DefaultStatus: http.StatusCreated,
	}, h.Followups.CreateFollowup)

	huma.Register(api, huma.Operation{
		OperationID: "getFollowup",
		Method:      http.MethodGet,
		Path:        "/followups/{followupId}",
		Summary:     "Get a followup",
		Tags:        []string{"followups"},
	}, h.Followups.GetFollowup)

	huma.Register(api, huma.Operation{
		OperationID: "updateFollowup",
		Method:      http.MethodPatch,
		Path:        "/followups/{followupId}",
		Summary:     "Update a followup",
		Description: "Merges the given fields into the followup",
		Tags:        []string{"followups"},
	}, h.Followups.UpdateFollowup)

	huma.Register(api, huma.Operation{
		OperationID:   "deleteFollowup",
		Method:        http.MethodDelete,
		Path:          "/followups/{followupId}",
		Summary:       "Delete a followup",
		Tags:          []string{"followups"},
		DefaultStatus: http.StatusNoContent,
	}, h.Followups.DeleteFollowup)

	huma.Register(api, huma.Operation{
		OperationID: "markFollowupDone",
		Method:      http.MethodPost,
		Path:        "/followups/{followupId}/done",
		Summary:     "Mark a followup done",
		Tags:        []string{"followups"},
	}, h.Followups.MarkDone)

	huma.Register(api, huma.Operation{
		OperationID: "snoozeFollowup",
		Method:      http.MethodPost,
		Path:        "/followups/{followupId}/snooze",
		Summary:     "Snooze a followup",
		Description: "Moves the due time to the snooze time",
		Tags:        []string{"followups"},
	}, h.Followups.SnoozeFollowup)

	huma.Register(api, huma.Operation{
		OperationID: "cancelFollowup",
		Method:      http.MethodPost,
		Path:        "/followups/{followupId}/cancel",
		Summary:     "Cancel a followup",
		Tags:        []string{"followups"},
	}, h.Followups.CancelFollowup)

	huma.Register(api, huma.Operation{
		OperationID: "generateDraft",
		Method:      http.MethodPost,
		Path:        "/followups/{followupId}/draft",
		Summary:     "Generate a reply draft",
		Description: "Generates and stores a reply draft; a template is used when the LLM is unavailable",
		Tags:        []string{"followups"},
	}, h.Followups.GenerateDraft)

	huma.Register(api, huma.Operation{
		OperationID: "findFollowupByThread",
		Method:      http.MethodGet,
		Path:        "/threads/{threadKey}/followup",
		Summary:     "Find the open followup of a thread",
		Tags:        []string{"followups"},
	}, h.Followups.FindByThread)

	// ========== RADAR & USAGE OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "getRadarStats",
		Method:      http.MethodGet,
		Path:        "/radar/stats",
		Summary:     "Get radar stats",
		Description: "Counts open followups by due bucket and direction",
		Tags:        []string{"radar"},
	}, h.Followups.GetRadarStats)

	huma.Register(api, huma.Operation{
		OperationID: "getRateLimitStatus",
		Method:      http.MethodGet,
		Path:        "/rate-limit/status",
		Summary:     "Get rate limit status",
		Tags:        []string{"radar"},
	}, h.Usage.GetRateLimitStatus)

	huma.Register(api, huma.Operation{
		OperationID: "getDailyCost",
		Method:      http.MethodGet,
		Path:        "/costs/today",
		Summary:     "Get today's cost record",
		Tags:        []string{"costs"},
	}, h.Usage.GetDailyCost)

	huma.Register(api, huma.Operation{
		OperationID: "getCostBreakdown",
		Method:      http.MethodGet,
		Path:        "/costs/breakdown",
		Summary:     "Get today's cost breakdown",
		Tags:        []string{"costs"},
	}, h.Usage.GetCostBreakdown)

	huma.Register(api, huma.Operation{
		OperationID: "estimateMonthlyCost",
		Method:      http.MethodGet,
		Path:        "/costs/estimate",
		Summary:     "Estimate monthly cost",
		Tags:        []string{"costs"},
	}, h.Usage.EstimateMonthlyCost)

	huma.Register(api, huma.Operation{
		OperationID: "getCostSummary",
		Method:      http.MethodGet,
		Path:        "/costs/summary",
		Summary:     "Get cost summary",
		Tags:        []string{"costs"},
	}, h.Usage.GetCostSummary)

	// ========== USER OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "getAPIKey",
		Method:      http.MethodGet,
		Path:        "/users/me/api-key",
		Summary:     "Check for a stored API key",
		Tags:        []string{"users"},
	}, h.Users.GetAPIKey)

	huma.Register(api, huma.Operation{
		OperationID: "storeAPIKey",
		Method:      http.MethodPost,
		Path:        "/users/me/api-key",
		Summary:     "Store user's API key",
		Description: "Validates the user's OpenAI key and stores it in Google Cloud Secret Manager",
		Tags:        []string{"users"},
	}, h.Users.StoreAPIKey)

	huma.Register(api, huma.Operation{
		OperationID: "deleteAPIKey",
		Method:      http.MethodDelete,
		Path:        "/users/me/api-key",
		Summary:     "Delete user's API key",
		Tags:        []string{"users"},
	}, h.Users.DeleteAPIKey)

	// ========== PUB/SUB PUSH OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "ingestEmail",
		Method:      http.MethodPost,
		Path:        "/ingest/email",
		Summary:     "Ingest an inbound email",
		Description: "Receives an inbound email pushed by Pub/Sub and tracks its thread",
		Tags:        []string{"ingest"},
	}, h.Ingest.IngestEmail)

	huma.Register(api, huma.Operation{
		OperationID:   "recordDLQ",
		Method:        http.MethodPost,
		Path:          "/dlq/record",
		Summary:       "Record DLQ message",
		Description:   "Records a dead letter queue message from Pub/Sub",
		Tags:          []string{"dlq"},
		DefaultStatus: http.StatusNoContent,
	}, h.DLQ.RecordDLQ)

	logger.Info().Msg("All operations registered successfully")
}
