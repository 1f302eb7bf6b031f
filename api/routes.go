package api

import (
	"net/http"
	"time"

	"github.com/0xcafe-io/iz"
	"github.com/google/uuid"
	"github.com/hamdibenjarrar/DinarWise/internal/contextutil"
	"github.com/hamdibenjarrar/DinarWise/logging"
)

const TraceHeader = "X-Trace-ID"

func NewRouter(api *Api) http.Handler {
	server := http.NewServeMux()

	// USER ENDPOINTS.
	server.HandleFunc("POST /api/register", iz.Bind(api.SaveUserHandler))           // Create User
	server.HandleFunc("POST /api/login", iz.Bind(api.LoginUserHandler))             // Login User
	server.HandleFunc("GET /api/logout", iz.Bind(api.LogoutUserHandler))            // Logout User
	server.HandleFunc("GET /api/account", iz.Bind(api.GetAccountInfo))              // Account Info
	server.HandleFunc("GET /api/health", iz.Bind(api.HealthHandler))                // Storage health
	server.HandleFunc("DELETE /api/user/reset-data", iz.Bind(api.ResetDataHandler)) // Delete every transaction

	// TRANSACTION ENDPOINTS.
	server.HandleFunc("GET /api/transactions", iz.Bind(api.GetTransactionsHandler))           // List with totals
	server.HandleFunc("POST /api/transactions", iz.Bind(api.SaveTransactionHandler))          // Create Transaction
	server.HandleFunc("PUT /api/transactions/{id}", iz.Bind(api.UpdateTransactionHandler))    // Edit Transaction
	server.HandleFunc("DELETE /api/transactions/{id}", iz.Bind(api.DeleteTransactionHandler)) // Delete Transaction

	// ANALYTICS ENDPOINTS.
	server.HandleFunc("GET /api/analytics", iz.Bind(api.AnalyticsHandler))   // Charts and summary for a range
	server.HandleFunc("GET /api/analytics/trend", iz.Bind(api.TrendHandler)) // Monthly trend
	server.HandleFunc("GET /api/calendar", iz.Bind(api.CalendarHandler))     // Single day view

	// BUDGET ENDPOINTS.
	server.HandleFunc("GET /api/budget", iz.Bind(api.GetBudgetHandler))                    // Month report
	server.HandleFunc("POST /api/budget", iz.Bind(api.SaveBudgetCategoryHandler))          // Create Budget Category
	server.HandleFunc("PUT /api/budget/{id}", iz.Bind(api.UpdateBudgetCategoryHandler))    // Update Budget Category
	server.HandleFunc("DELETE /api/budget/{id}", iz.Bind(api.DeleteBudgetCategoryHandler)) // Delete Budget Category
	server.HandleFunc("GET /api/savings-goal", iz.Bind(api.GetSavingsGoalHandler))
	server.HandleFunc("PUT /api/savings-goal", iz.Bind(api.UpdateSavingsGoalHandler))

	server.HandleFunc("GET /api/export", api.ExportHandler) // Download transactions as xlsx

	return withTrace(server)
}

// withTrace tags every request with a trace id, taken from the client when present.
func withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		w.Header().Set(TraceHeader, traceID)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(contextutil.WithTraceID(r.Context(), traceID)))
		logging.Logger.Debugf("[TraceID=%s] | %s %s | %s", traceID, r.Method, r.URL.Path, time.Since(start))
	})
}
