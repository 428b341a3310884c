package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"quicktranslator/pkg/controller"
	"quicktranslator/pkg/logger"
	"quicktranslator/pkg/runner"
)

const maxRequestBody = 1 << 20

type commandKind int

const (
	cmdState commandKind = iota
	cmdTranslate
	cmdToggle
	cmdCancel
)

// command is handed from an HTTP handler to the loop goroutine.
type command struct {
	kind  commandKind
	text  string
	wait  bool
	reply chan reply
}

type reply struct {
	accepted bool
	stopped  bool // the loop ended before the command completed
	snapshot controller.Snapshot
}

// errStopped is returned to handlers once the loop has ended.
var errStopped = errors.New("translator loop stopped")

// StateResponse is the JSON view of a controller snapshot.
type StateResponse struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	State      string `json:"state"`
	CanSubmit  bool   `json:"can_submit"`
	Result     string `json:"result"`
	NoticeKind string `json:"notice_kind"`
	Notice     string `json:"notice,omitempty"`
	Message    string `json:"message,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	Accepted   *bool  `json:"accepted,omitempty"`
}

type translateRequest struct {
	Text string `json:"text"`
}

// Server exposes one controller over HTTP. Handlers never touch the
// controller; they send commands to the loop started by Run.
type Server struct {
	app    *runner.App
	logger *logger.Logger
	cmds   chan command
	done   chan struct{} // closed when Run returns
	router chi.Router
}

func NewServer(a *runner.App) *Server {
	s := &Server{
		app:    a,
		logger: a.Logger.Named("remote"),
		cmds:   make(chan command),
		done:   make(chan struct{}),
	}
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(corsOptions(s.app.Config.Remote.AllowedOrigins)))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/state", s.state)

		r.Group(func(r chi.Router) {
			r.Use(maxBodySize(maxRequestBody))
			r.Post("/translate", s.translate)
			r.Post("/toggle", s.toggle)
			r.Post("/cancel", s.cancel)
		})
	})
	return r
}

// Handler returns the HTTP handler. Run must be active for any endpoint
// other than /api/health to answer.
func (s *Server) Handler() http.Handler { return s.router }

// Run owns the controller until ctx ends. It must be called once.
func (s *Server) Run(ctx context.Context) {
	defer close(s.done)
	ctrl := s.app.NewController(ctx, nil)
	defer ctrl.Close()

	var waiters []chan reply
	ctrl.Subscribe(func(snap controller.Snapshot) {
		if snap.State != controller.Idle || len(waiters) == 0 {
			return
		}
		for _, w := range waiters {
			w <- reply{accepted: true, snapshot: snap}
		}
		waiters = nil
	})

	for {
		select {
		case <-ctx.Done():
			// no outcome will be delivered any more; release parked requests
			ctrl.Close()
			for _, w := range waiters {
				w <- reply{accepted: true, stopped: true, snapshot: ctrl.Snapshot()}
			}
			return

		case o := <-ctrl.Outcomes():
			ctrl.Deliver(o)

		case cmd := <-s.cmds:
			accepted := true
			switch cmd.kind {
			case cmdTranslate:
				accepted = ctrl.Submit(cmd.text)
				if accepted && cmd.wait {
					// answered by the subscriber once the outcome is delivered
					waiters = append(waiters, cmd.reply)
					continue
				}
			case cmdToggle:
				ctrl.ToggleDirection()
			case cmdCancel:
				accepted = ctrl.Cancel()
			}
			cmd.reply <- reply{accepted: accepted, snapshot: ctrl.Snapshot()}
		}
	}
}

// ListenAndServe runs the loop and the HTTP server until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Run(ctx)

	srv := &http.Server{
		Addr:              s.app.Config.Remote.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		s.logger.Infof("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// do sends cmd to the loop and waits for its reply.
func (s *Server) do(ctx context.Context, cmd command) (reply, error) {
	// buffered so the loop never blocks on a handler that gave up
	cmd.reply = make(chan reply, 1)
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return reply{}, errStopped
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		if r.stopped {
			return r, errStopped
		}
		return r, nil
	case <-s.done:
		// a reply sent just before the loop ended is still valid
		select {
		case r := <-cmd.reply:
			if !r.stopped {
				return r, nil
			}
		default:
		}
		return reply{}, errStopped
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": s.app.Provider.Name(),
	})
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, command{kind: cmdState})
}

// translate submits the text. With ?wait=true the response is delayed until
// the outcome has been applied.
func (s *Server) translate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	res, err := s.do(r.Context(), command{kind: cmdTranslate, text: req.Text, wait: wait})
	if err != nil {
		jsonError(w, "request aborted: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	status := http.StatusAccepted
	switch {
	case wait && res.accepted:
		status = http.StatusOK
	case !res.accepted && res.snapshot.State == controller.InFlight:
		status = http.StatusConflict
	case !res.accepted:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, toResponse(res))
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, command{kind: cmdToggle})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, command{kind: cmdCancel})
}

func (s *Server) exec(w http.ResponseWriter, r *http.Request, cmd command) {
	res, err := s.do(r.Context(), cmd)
	if err != nil {
		jsonError(w, "request aborted: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func toResponse(res reply) StateResponse {
	snap := res.snapshot
	out := StateResponse{
		Source:     snap.Direction.Source,
		Target:     snap.Direction.Target,
		State:      snap.State.String(),
		CanSubmit:  snap.CanSubmit(),
		Result:     snap.Result,
		NoticeKind: snap.NoticeKind.String(),
		Notice:     snap.Notice,
		Message:    runner.NoticeText(snap),
		Completed:  snap.Completed,
		Failed:     snap.Failed,
	}
	if snap.LastRequest != nil {
		out.RequestID = snap.LastRequest.ID
	}
	accepted := res.accepted
	out.Accepted = &accepted
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
