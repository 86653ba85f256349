package graphql

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/transport/http/middleware"
)

type authContextKey struct{}

func withAuth(ctx context.Context, a domain.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, a)
}

func authFrom(ctx context.Context) domain.AuthContext {
	a, _ := ctx.Value(authContextKey{}).(domain.AuthContext)
	return a
}

type requestParams struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handler executes GraphQL requests. Authentication and the session id are
// resolved by the router middleware; guests are allowed through.
func Handler(schema graphql.Schema) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params requestParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
			return
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  params.Query,
			OperationName:  params.OperationName,
			VariableValues: params.Variables,
			Context:        withAuth(r.Context(), middleware.RequestAuth(r)),
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	})
}
