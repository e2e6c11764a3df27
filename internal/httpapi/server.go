// Package httpapi wires every endpoint in spec §6 onto a chi router:
// registration/login/profile, upload/list/get/update/delete, download/
// preview, share create/revoke/consume, trash/bulk-delete/move/folders/
// stats. It generalizes the teacher's internal/handler/routes.go
// registration style (one route group per concern, doc comment above each
// group describing the HTTP contract) from the teacher's raw ServeMux to
// chi, which the spec's richer path-parameter and route-group surface
// warrants.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/zynqcloud/securevault/internal/authtoken"
	"github.com/zynqcloud/securevault/internal/metadatastore"
	"github.com/zynqcloud/securevault/internal/middleware"
	"github.com/zynqcloud/securevault/internal/quota"
	"github.com/zynqcloud/securevault/internal/vault"
)

// Deps bundles every collaborator a handler needs. It plays the role of
// the teacher's Handler struct (internal/handler/routes.go), but the vault
// splits handlers across files by concern, so Deps is shared rather than
// method-receiver-scoped to one file.
type Deps struct {
	Users    *metadatastore.Store
	Vault    *vault.Engine
	Quota    *quota.Manager
	Issuer   *authtoken.Issuer
	Logger   zerolog.Logger
	Origin   string // base URL used to build share links, e.g. FRONTEND_URL
	Validate *validator.Validate
}

// NewDeps constructs Deps with its derived fields (validator instance)
// filled in.
func NewDeps(users *metadatastore.Store, eng *vault.Engine, q *quota.Manager, issuer *authtoken.Issuer, logger zerolog.Logger, origin string) *Deps {
	return &Deps{Users: users, Vault: eng, Quota: q, Issuer: issuer, Logger: logger, Origin: origin, Validate: newValidator()}
}

// Router builds the root http.Handler: request logging and panic recovery
// wrap every route; rate limiting wraps every route; JWT auth wraps every
// route except registration, login, and anonymous share consumption.
func Router(d *Deps, rateWindow time.Duration, rateMax int, maxConcurrentUploads int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLog(d.Logger))
	r.Use(middleware.NewRateLimiter(rateWindow, rateMax).Limit)

	auth := middleware.Auth(d.Issuer, d.Users)
	uploadLimiter := middleware.NewUploadLimiter(maxConcurrentUploads)

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", d.handleRegister)
			ar.Post("/login", d.handleLogin)

			ar.Group(func(pr chi.Router) {
				pr.Use(auth)
				pr.Get("/storage", d.handleStorage)
				pr.Get("/me", d.handleMe)
				pr.Patch("/update-profile", d.handleUpdateProfile)
				pr.Patch("/update-password", d.handleUpdatePassword)
				pr.Post("/logout", d.handleLogout)
				pr.Delete("/delete-account", d.handleDeleteAccount)
			})
		})

		api.Route("/files", func(fr chi.Router) {
			fr.Get("/shared/{token}", d.handleShareConsume) // anonymous

			fr.Group(func(pr chi.Router) {
				pr.Use(auth)
				pr.With(uploadLimiter.Limit).Post("/upload", d.handleUpload)
				pr.Get("/", d.handleList)
				pr.Get("/trash", d.handleTrash)
				pr.Delete("/trash", d.handleEmptyTrash)
				pr.Post("/bulk-delete", d.handleBulkDelete)
				pr.Post("/move", d.handleMove)
				pr.Get("/folders", d.handleFolders)
				pr.Get("/stats", d.handleStats)

				pr.Get("/{id}", d.handleGet)
				pr.Patch("/{id}", d.handleUpdate)
				pr.Delete("/{id}", d.handleDelete)
				pr.Get("/{id}/download", d.handleDownload)
				pr.Get("/{id}/preview", d.handlePreview)
				pr.Post("/{id}/share", d.handleShareCreate)
				pr.Delete("/{id}/share", d.handleShareRevoke)
				pr.Post("/{id}/restore", d.handleRestore)
			})
		})

		api.Route("/admin", func(adr chi.Router) {
			adr.Use(auth, middleware.RequireAdmin)
			adr.Get("/metrics", d.handleMetrics)
		})
	})

	r.Get("/health", d.handleHealth)

	return r
}
