package handler

import (
	"net/http"
	"strings"
)

// NewRouter wires the account routes and health check onto a ServeMux.
func NewRouter(accounts *AccountHandler, health *HealthHandler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/healthz", health)

	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/accounts/"), "/")
		if path == "" {
			writeError(w, http.StatusBadRequest, "Account number is required")
			return
		}

		switch {
		case path == "create":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			accounts.CreateAccount(w, r)

		case path == "transfer":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			accounts.Transfer(w, r)

		case strings.HasSuffix(path, "/deposit"):
			if r.Method != http.MethodPut {
				writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			accounts.Deposit(w, r, strings.TrimSuffix(path, "/deposit"))

		case strings.HasSuffix(path, "/withdraw"):
			if r.Method != http.MethodPut {
				writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			accounts.Withdraw(w, r, strings.TrimSuffix(path, "/withdraw"))

		case strings.HasSuffix(path, "/transactions"):
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			accounts.GetTransactions(w, r, strings.TrimSuffix(path, "/transactions"))

		default:
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			accounts.GetAccount(w, r, path)
		}
	})

	return mux
}
