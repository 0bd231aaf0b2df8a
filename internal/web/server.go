package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"attendance-tracker/internal/attendance"
	"attendance-tracker/internal/httpmiddleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures the HTTP surface.
type Options struct {
	Logger          *zap.Logger
	StorageDesc     string
	RateLimitPerMin int
	Heartbeat       time.Duration
	// Health reports backend reachability for /healthz.
	Health func(ctx context.Context) error
}

// Server renders the attendance views and the JSON API over one store.
type Server struct {
	store  *attendance.Store
	opts   Options
	logger *zap.Logger
	tmpl   *template.Template

	streamsOnce sync.Once
	streamsDone chan struct{}
}

// NewServer parses the embedded templates.
func NewServer(st *attendance.Store, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}
	if opts.Health == nil {
		opts.Health = func(context.Context) error { return nil }
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{
		store:       st,
		opts:        opts,
		logger:      opts.Logger,
		tmpl:        tmpl,
		streamsDone: make(chan struct{}),
	}, nil
}

// CloseStreams ends every open /events stream. http.Server.Shutdown does
// not cancel request contexts, so it is registered as a shutdown hook.
func (s *Server) CloseStreams() {
	s.streamsOnce.Do(func() { close(s.streamsDone) })
}

// Router builds the gin engine with middleware and all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics", "/events"},
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewLimiter(s.opts.RateLimitPerMin, "/healthz", "/metrics", "/events").GinMiddleware())
	r.SetHTMLTemplate(s.tmpl)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)
	r.GET("/events", s.events)

	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/dashboard") })
	r.GET("/dashboard", s.view(ViewDashboard))
	r.GET("/records", s.view(ViewRecords))
	r.GET("/settings", s.view(ViewSettings))

	r.POST("/records", s.createRecord)
	r.POST("/records/:id", s.updateRecord)
	r.POST("/records/:id/delete", s.deleteRecord)
	r.POST("/settings/sync", s.syncNow)
	r.POST("/settings/clear", s.clearAll)

	s.registerAPI(r.Group("/api", corsMiddleware()))
	return r
}

func (s *Server) view(v View) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.show(c, http.StatusOK, ParseViewState(string(v), c.Request.URL.Query()), nil, "")
	}
}

// show renders st. A non-nil form replaces the composer built from st.
func (s *Server) show(c *gin.Context, code int, st ViewState, form *FormModel, syncMessage string) {
	records, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.Error("list records failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "unable to load records")
		return
	}

	p := newPage(st)
	switch st.View {
	case ViewDashboard:
		p.Dashboard = buildDashboard(records, s.store.Today(), st)
	case ViewRecords:
		if form == nil && st.Composer {
			form = s.composer(records, st)
		}
		p.Records = &recordsModel{
			Form:            form,
			Table:           BuildTable(records, st),
			StatusOptions:   statusOptions(st.Status),
			ClearFiltersURL: st.ClearFilters().URL(),
			FilterAction:    "/" + string(ViewRecords),
			Query:           st.Query,
		}
	case ViewSettings:
		p.Settings = s.settings(syncMessage)
	}
	c.HTML(code, "layout.html", p)
}

// composer builds the form for st. An edit target that no longer exists
// leaves the composer closed.
func (s *Server) composer(records []attendance.Record, st ViewState) *FormModel {
	if st.EditID == "" {
		f := NewForm(FormNew, nil, s.store.Today())
		s.wireForm(&f, st)
		return &f
	}
	for i := range records {
		if records[i].ID == st.EditID {
			f := NewForm(FormEdit, &records[i], s.store.Today())
			s.wireForm(&f, st)
			return &f
		}
	}
	return nil
}

func (s *Server) wireForm(f *FormModel, st ViewState) {
	back := st.CloseComposer()
	f.Cancel = back.URL()
	if f.Mode == FormEdit {
		f.Action = withQuery("/records/"+f.RecordID, back.Values())
	} else {
		f.Action = withQuery("/records", back.Values())
	}
}

func (s *Server) settings(syncMessage string) *settingsModel {
	base, ok := s.store.APIBaseURL()
	if !ok {
		base = "Not set (local storage mode)"
	}
	return &settingsModel{
		APIBase:     base,
		StorageKey:  s.store.Key(),
		StorageDesc: s.opts.StorageDesc,
		Endpoints:   attendance.RemoteEndpoints,
		SyncMessage: syncMessage,
	}
}

func postedValues(c *gin.Context) FormValues {
	return FormValues{
		Date:   c.PostForm("date"),
		Name:   c.PostForm("name"),
		Status: c.PostForm("status"),
		Note:   c.PostForm("note"),
	}
}

func (s *Server) createRecord(c *gin.Context) {
	ctx := c.Request.Context()
	st := ParseViewState(string(ViewRecords), c.Request.URL.Query()).CloseComposer()

	form := NewForm(FormNew, nil, s.store.Today())
	s.wireForm(&form, st.OpenNew())
	form, ok := form.Submit(postedValues(c), func(v FormValues) error {
		_, err := s.store.Create(ctx, v.Input())
		return err
	})
	if !ok {
		s.logger.Debug("create rejected", zap.String("error", form.Error))
		s.show(c, http.StatusUnprocessableEntity, st.OpenNew(), &form, "")
		return
	}
	c.Redirect(http.StatusSeeOther, st.URL())
}

func (s *Server) updateRecord(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	st := ParseViewState(string(ViewRecords), c.Request.URL.Query()).CloseComposer()

	form := FormModel{Mode: FormEdit, RecordID: id}
	s.wireForm(&form, st.Edit(id))
	form, ok := form.Submit(postedValues(c), func(v FormValues) error {
		_, err := s.store.Update(ctx, id, v.Patch())
		return err
	})
	if !ok {
		s.logger.Debug("update rejected", zap.String("id", id), zap.String("error", form.Error))
		s.show(c, http.StatusUnprocessableEntity, st.Edit(id), &form, "")
		return
	}
	c.Redirect(http.StatusSeeOther, st.URL())
}

func confirmed(c *gin.Context) bool { return c.PostForm("confirmed") == "yes" }

func (s *Server) deleteRecord(c *gin.Context) {
	if !confirmed(c) {
		c.String(http.StatusBadRequest, "deletion requires confirmation")
		return
	}
	st := ParseViewState(string(ViewRecords), c.Request.URL.Query()).CloseComposer()
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.logger.Error("delete failed", zap.String("id", c.Param("id")), zap.Error(err))
		c.String(http.StatusInternalServerError, "unable to delete record")
		return
	}
	c.Redirect(http.StatusSeeOther, st.URL())
}

func (s *Server) clearAll(c *gin.Context) {
	if !confirmed(c) {
		c.String(http.StatusBadRequest, "clearing all data requires confirmation")
		return
	}
	if err := s.store.ClearAll(c.Request.Context()); err != nil {
		s.logger.Error("clear failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "unable to clear records")
		return
	}
	c.Redirect(http.StatusSeeOther, "/"+string(ViewSettings))
}

func (s *Server) syncNow(c *gin.Context) {
	res := s.store.TrySync(c.Request.Context())
	s.show(c, http.StatusOK, ViewState{View: ViewSettings}, nil, res.Message)
}

func (s *Server) healthz(c *gin.Context) {
	err := s.opts.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "storage": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": true})
}

// events streams a "change" Server-Sent Event after every store
// notification until the client goes away.
func (s *Server) events(c *gin.Context) {
	changed := make(chan struct{}, 1)
	unsubscribe := s.store.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("ready", s.store.Key())
	c.Writer.Flush()

	heartbeat := time.NewTicker(s.opts.Heartbeat)
	defer heartbeat.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.streamsDone:
			return
		case <-changed:
			c.SSEvent("change", s.store.Key())
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
		}
		c.Writer.Flush()
	}
}

// securityHeaders sets the usual hardening headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// corsMiddleware lets browser clients on other origins use the JSON API.
func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          24 * time.Hour,
	})
}
