package matchmaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Application binds the HTTP surface of the matchmaker: the health
// endpoint, user management, and the authenticated websocket upgrade
// into a signaling session.
type Application struct {
	settings Settings
	store    *Store
	registry *Registry

	listener net.Listener
	server   *http.Server

	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewApplication binds a listener according to the settings. The
// store stays owned by the caller; the registry is owned by the
// application and stopped on Shutdown.
func NewApplication(settings Settings, store *Store, log *logrus.Entry) (*Application, error) {
	addr := fmt.Sprintf("%s:%d", settings.Application.Host, settings.Application.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", addr, err)
	}

	a := &Application{
		settings: settings,
		store:    store,
		registry: NewRegistry(log),
		listener: listener,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.WithField("component", "application"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health_check", a.healthCheck)
	mux.HandleFunc("GET /login", a.login)
	mux.HandleFunc("POST /user/add", a.userAdd)
	mux.HandleFunc("GET /users", a.users)
	mux.HandleFunc("GET /user/{username}", a.requireAuth(a.userShow))
	mux.HandleFunc("DELETE /user/del/{username}", a.requireAuth(a.userDel))
	a.server = &http.Server{Handler: mux}

	a.log.WithField("port", a.Port()).Info("listening")
	return a, nil
}

// Port returns the bound port, useful when the settings asked for an
// ephemeral one.
func (a *Application) Port() uint16 {
	return uint16(a.listener.Addr().(*net.TCPAddr).Port)
}

// Registry exposes the session registry.
func (a *Application) Registry() *Registry {
	return a.registry
}

// Run serves until Shutdown is called.
func (a *Application) Run() error {
	err := a.server.Serve(a.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and terminates the registry.
// Upgraded websocket connections are not closed by it: their sessions
// keep running until their transports close or time out, and the
// registry calls they make after the registry stopped are no-ops.
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.registry.Stop()
	return err
}

func (a *Application) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// login authenticates, upgrades the connection and runs the session
// until it closes.
func (a *Application) login(w http.ResponseWriter, r *http.Request) {
	id, err := a.authenticate(r)
	if err != nil {
		unauthorized(w)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.WithError(err).Warn("upgrade failed")
		return
	}

	newSession(id, conn, a.registry, a.log).run()
}

func (a *Application) authenticate(r *http.Request) (uuid.UUID, error) {
	creds, err := basicCredentials(r)
	if err != nil {
		return uuid.Nil, err
	}
	return validateCredentials(a.store, creds)
}

// requireAuth wraps user management handlers behind Basic auth.
func (a *Application) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.authenticate(r); err != nil {
			unauthorized(w)
			return
		}
		next(w, r)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="matchmaker"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

type userData struct {
	Username string `json:"username"`
	Pwd      string `json:"pwd"`
}

func (a *Application) userAdd(w http.ResponseWriter, r *http.Request) {
	var form userData
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil || form.Username == "" {
		http.Error(w, "malformed user data", http.StatusBadRequest)
		return
	}
	if _, err := a.store.CreateUser(form.Username, form.Pwd); err != nil {
		a.log.WithError(err).Warn("user creation failed")
		http.Error(w, "could not create user", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *Application) userShow(w http.ResponseWriter, r *http.Request) {
	user, err := a.store.FindUserByName(r.PathValue("username"))
	if errors.Is(err, ErrUnknownUser) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"username": user.Name})
}

func (a *Application) userDel(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteUser(r.PathValue("username")); err != nil {
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *Application) users(w http.ResponseWriter, _ *http.Request) {
	stored, err := a.store.ListUsers()
	if err != nil {
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}
	names := make([]string, 0, len(stored))
	for _, u := range stored {
		names = append(names, u.Name)
	}
	writeJSON(w, names)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
