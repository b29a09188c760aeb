package httpapi

import (
	"net/http"
	"time"

	"fablab-backend-go/internal/cache"
	"fablab-backend-go/internal/config"
	"fablab-backend-go/internal/notify"
	"fablab-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Notifier receives events once the write that produced them is committed.
type Notifier interface {
	Notify(event notify.Event)
}

type Options struct {
	Live     *services.LiveHub
	Notifier Notifier
	Cache    cache.Cache
	Log      *zerolog.Logger
}

type Server struct {
	DB       *sqlx.DB
	Config   config.Config
	Tokens   services.TokenService
	Live     *services.LiveHub
	Notifier Notifier
	Cache    cache.Cache
	Media    services.MediaStore
	Log      *zerolog.Logger
	Guard    *LoginGuard
}

func NewServer(db *sqlx.DB, cfg config.Config, opts Options) *Server {
	log := opts.Log
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	store := opts.Cache
	if store == nil {
		store = cache.NewMemoryCache(cfg.CacheTTL)
	}
	return &Server{
		DB:     db,
		Config: cfg,
		Tokens: services.TokenService{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
			TTL:    cfg.JWTExpiresIn,
		},
		Live:     opts.Live,
		Notifier: opts.Notifier,
		Cache:    store,
		Media: services.MediaStore{
			BaseDir:      cfg.UploadDir,
			PublicPrefix: "/uploads",
			MaxBytes:     cfg.MaxUploadBytes(),
		},
		Log:   log,
		Guard: NewLoginGuard(5, 15*time.Minute, 15*time.Minute),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(s.Log))
	r.Use(s.Recoverer)
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", headerRequestID},
			ExposedHeaders:   []string{headerRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	auth := Authenticate(s.DB, s.Tokens)
	submissions := RateLimit(0.2, 5)

	r.Get("/health", s.Health)
	r.Get("/ws/live", s.LiveSocket)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", noDirListing(http.FileServer(http.Dir(s.Config.UploadDir)))))

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(a chi.Router) {
			a.With(RateLimit(1, 10)).Post("/register", s.Register)
			a.With(RateLimit(0.5, 5)).Post("/login", s.Login)
			a.Group(func(me chi.Router) {
				me.Use(auth)
				me.Get("/me", s.Me)
				me.Put("/profile", s.UpdateProfile)
				me.Put("/password", s.ChangePassword)
			})
		})

		api.Route("/users", func(u chi.Router) {
			u.Use(auth, RequireAdmin)
			u.Get("/", s.ListUsers)
			u.Get("/{id}", s.GetUser)
			u.Group(func(w chi.Router) {
				w.Use(RequireSuperAdmin)
				w.Post("/", s.CreateUser)
				w.Put("/{id}", s.UpdateUser)
				w.Delete("/{id}", s.DeleteUser)
				w.Patch("/{id}/toggle-active", s.ToggleUserActive)
			})
		})

		api.Route("/workshops", func(ws chi.Router) {
			ws.Get("/published", s.PublishedWorkshops)
			ws.Get("/published/{slug}", s.PublishedWorkshop)
			ws.With(submissions).Post("/{id}/register", s.RegisterForWorkshop)
			ws.Group(func(a chi.Router) {
				a.Use(auth, RequireAdmin)
				a.Get("/", s.ListWorkshops)
				a.Get("/stats", s.WorkshopStats)
				a.Post("/", s.CreateWorkshop)
				a.Get("/{id}", s.GetWorkshop)
				a.Put("/{id}", s.UpdateWorkshop)
				a.Delete("/{id}", s.DeleteWorkshop)
				a.Patch("/{id}/status", s.UpdateWorkshopStatus)
				a.Get("/{id}/registrations", s.ListRegistrations)
				a.Patch("/registrations/{regId}/status", s.UpdateRegistrationStatus)
			})
		})

		api.Route("/equipment", func(eq chi.Router) {
			eq.Get("/active", s.ActiveEquipment)
			eq.Group(func(a chi.Router) {
				a.Use(auth, RequireAdmin)
				a.Get("/", s.ListEquipment)
				a.Post("/", s.CreateEquipment)
				a.Put("/reorder", s.ReorderEquipment)
				a.Get("/{id}", s.GetEquipment)
				a.Put("/{id}", s.UpdateEquipment)
				a.Delete("/{id}", s.DeleteEquipment)
			})
		})

		api.Route("/innovations", func(in chi.Router) {
			in.Get("/published", s.PublishedInnovations)
			in.Get("/published/{id}", s.PublishedInnovation)
			in.With(submissions).Post("/{id}/like", s.LikeInnovation)
			in.With(submissions).Post("/submit", s.SubmitInnovation)
			in.Group(func(a chi.Router) {
				a.Use(auth, RequireAdmin)
				a.Get("/", s.ListInnovations)
				a.Post("/", s.CreateInnovation)
				a.Get("/{id}", s.GetInnovation)
				a.Put("/{id}", s.UpdateInnovation)
				a.Delete("/{id}", s.DeleteInnovation)
				a.Patch("/{id}/status", s.UpdateInnovationStatus)
				a.Patch("/{id}/featured", s.ToggleInnovationFeatured)
			})
		})

		api.Route("/team", func(t chi.Router) {
			t.Get("/active", s.ActiveTeam)
			t.Group(func(a chi.Router) {
				a.Use(auth, RequireAdmin)
				a.Get("/", s.ListTeam)
				a.Post("/", s.CreateTeamMember)
				a.Get("/{id}", s.GetTeamMember)
				a.Put("/{id}", s.UpdateTeamMember)
				a.Delete("/{id}", s.DeleteTeamMember)
			})
		})

		api.Route("/blog", func(b chi.Router) {
			b.Get("/published", s.PublishedPosts)
			b.Get("/published/{slug}", s.PublishedPost)
			b.Get("/categories", s.PostCategories)
			b.Group(func(a chi.Router) {
				a.Use(auth, RequireAdmin)
				a.Get("/", s.ListPosts)
				a.Post("/", s.CreatePost)
				a.Get("/{id}", s.GetPost)
				a.Put("/{id}", s.UpdatePost)
				a.Delete("/{id}", s.DeletePost)
			})
		})

		api.Route("/pages", func(p chi.Router) {
			p.Get("/published/{slug}", s.PublishedPage)
			p.Group(func(a chi.Router) {
				a.Use(auth, RequireAdmin)
				a.Get("/", s.ListPages)
				a.Post("/", s.CreatePage)
				a.Get("/{id}", s.GetPage)
				a.Put("/{id}", s.UpdatePage)
				a.Delete("/{id}", s.DeletePage)
			})
		})

		api.Route("/contacts", func(c chi.Router) {
			c.With(submissions).Post("/", s.CreateContact)
			c.Group(func(a chi.Router) {
				a.Use(auth, RequireAdmin)
				a.Get("/", s.ListContacts)
				a.Get("/stats", s.ContactStats)
				a.Get("/{id}", s.GetContact)
				a.Patch("/{id}/status", s.UpdateContactStatus)
				a.Delete("/{id}", s.DeleteContact)
			})
		})

		api.Route("/projects", func(p chi.Router) {
			p.With(submissions).Post("/", s.CreateProject)
			p.Group(func(a chi.Router) {
				a.Use(auth, RequireAdmin)
				a.Get("/", s.ListProjects)
				a.Get("/{id}", s.GetProject)
				a.Patch("/{id}/status", s.UpdateProjectStatus)
				a.Delete("/{id}", s.DeleteProject)
			})
		})

		api.Route("/ppn", func(p chi.Router) {
			p.Get("/active", s.ActivePPN)
			p.Group(func(a chi.Router) {
				a.Use(auth, RequireAdmin)
				a.Get("/", s.ListPPN)
				a.Post("/", s.CreatePPN)
				a.Get("/{id}", s.GetPPN)
				a.Put("/{id}", s.UpdatePPN)
				a.Delete("/{id}", s.DeletePPN)
			})
		})

		api.Route("/settings", func(st chi.Router) {
			st.Get("/", s.Settings)
			st.Get("/{key}", s.Setting)
			st.With(auth, RequireAdmin).Put("/", s.UpsertSettings)
			st.With(auth, RequireSuperAdmin).Delete("/{key}", s.DeleteSetting)
		})

		api.Route("/media", func(m chi.Router) {
			m.Use(auth, RequireAdmin)
			m.Get("/", s.ListMedia)
			m.Post("/upload", s.UploadMedia)
			m.Delete("/{id}", s.DeleteMedia)
		})

		api.Route("/notifications", func(n chi.Router) {
			n.Use(auth)
			n.Get("/", s.ListNotifications)
			n.Get("/unread-count", s.UnreadCount)
			n.Patch("/read-all", s.MarkAllRead)
			n.Patch("/{id}/read", s.MarkRead)
			n.Delete("/{id}", s.DeleteNotification)
		})

		api.With(auth, RequireAdmin).Get("/dashboard/stats", s.DashboardStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "Route introuvable")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Méthode non autorisée")
	})
	return r
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok"}
	if err := s.DB.PingContext(r.Context()); err != nil {
		logFrom(r, s.Log).Error().Err(err).Msg("health: database ping failed")
		resp.Database = "error"
	}
	WriteJSON(w, http.StatusOK, resp)
}

func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			WriteError(w, http.StatusNotFound, "Fichier introuvable")
			return
		}
		next.ServeHTTP(w, r)
	})
}
