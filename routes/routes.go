package routes

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"parcelhub/handlers"
)

// CORS middleware
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type Handlers struct {
	Packages *handlers.PackageHandler
	Batches  *handlers.BatchHandler
	Agencies *handlers.AgencyHandler
	Labels   *handlers.LabelHandler
}

// method restricts fn to a single HTTP method.
func method(m string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			handlers.MethodNotAllowed(w)
			return
		}
		fn(w, r)
	}
}

func SetupRoutes(mux *http.ServeMux, log *zap.Logger, h Handlers) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, withCORS(handlers.RecoverWrapper(log, fn)))
	}

	// Package routes
	handle("/packages", method(http.MethodGet, h.Packages.ListPackages))
	handle("/packages/", func(w http.ResponseWriter, r *http.Request) {
		id, action, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/packages/"), "/")
		if id == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		packageAction(h, w, r, id, action)
	})

	// Pull and batch routes
	handle("/pulls", method(http.MethodPost, h.Batches.CreatePull))
	handle("/batches/distribution-preview", method(http.MethodPost, h.Batches.Preview))
	handle("/batches/create-with-pulls", method(http.MethodPost, h.Batches.CreateWithPulls))
	handle("/batches/auto-distribute", method(http.MethodPost, h.Batches.AutoDistribute))

	// Agency catalog
	handle("/agencies", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Agencies.ListAgencies(w, r)
		case http.MethodPost:
			h.Agencies.CreateAgency(w, r)
		default:
			handlers.MethodNotAllowed(w)
		}
	})
}

func packageAction(h Handlers, w http.ResponseWriter, r *http.Request, id, action string) {
	type route struct {
		method string
		fn     func(http.ResponseWriter, *http.Request, string)
	}
	table := map[string]route{
		"":                   {http.MethodGet, h.Packages.GetPackage},
		"shipping":           {http.MethodGet, h.Packages.Shipping},
		"children":           {http.MethodGet, h.Packages.Children},
		"descendants":        {http.MethodGet, h.Packages.Descendants},
		"ancestry":           {http.MethodGet, h.Packages.Ancestry},
		"associate-children": {http.MethodPost, h.Packages.AssociateChildren},
		"create-child":       {http.MethodPost, h.Packages.CreateChild},
		"detach":             {http.MethodPost, h.Packages.Detach},
		"parent":             {http.MethodPut, h.Packages.SetParent},
		"migrate-code":       {http.MethodPost, h.Packages.MigrateCode},
	}
	if h.Labels != nil {
		table["label"] = route{http.MethodGet, h.Labels.Label}
	}

	rt, ok := table[strings.TrimSuffix(action, "/")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != rt.method {
		handlers.MethodNotAllowed(w)
		return
	}
	rt.fn(w, r, id)
}
