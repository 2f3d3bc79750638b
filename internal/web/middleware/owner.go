package middleware

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/shplep/homecontentslistpro-sub000/internal/core"
)

// OwnerHeader carries the id of the account whose inventory is imported.
const OwnerHeader = "X-Owner-ID"

var ownerValidate = validator.New(validator.WithRequiredStructEnabled())

// RequireOwner reads the owner id from OwnerHeader and stores it with
// core.ContextWithOwner. Requests without a usable id get 401.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if err := ownerValidate.Var(owner, "required,max=128,printascii"); err != nil {
			writeError(w, http.StatusUnauthorized, "AUTH001",
				"We couldn't tell whose inventory this import is for.",
				"Sign in again and retry the import.")
			return
		}
		next.ServeHTTP(w, r.WithContext(core.ContextWithOwner(r.Context(), owner)))
	})
}
