package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type credentials struct {
	Name     string
	Email    string
	Password string
}

func (c *credentials) decode(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "name":
		c.Name, err = d.Str()
	case "email":
		c.Email, err = d.Str()
	case "password":
		c.Password, err = d.Str()
	default:
		return d.Skip()
	}
	return err
}

// Login authenticates {"email","password"} against the user directory.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeBody(w, r, c.decode); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := h.accounts.Login(r.Context(), c.Email, c.Password)
	if err != nil {
		internalError(r.Context(), w, "login", err)
		return
	}
	h.logins.Add(r.Context(), 1, metric.WithAttributes(attribute.Bool("success", ok)))
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	h.writeIdentity(w, http.StatusOK)
}

// Register creates a user from {"name","email","password"} and logs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeBody(w, r, c.decode); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if c.Name == "" || c.Email == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	ok, err := h.accounts.Register(r.Context(), c.Name, c.Email, c.Password)
	if err != nil {
		internalError(r.Context(), w, "register", err)
		return
	}
	h.registrations.Add(r.Context(), 1, metric.WithAttributes(attribute.Bool("success", ok)))
	if !ok {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	h.writeIdentity(w, http.StatusCreated)
}

// Logout clears the identity. Order history is kept.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context()); err != nil {
		internalError(r.Context(), w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current identity.
func (h *Handler) Me(w http.ResponseWriter, _ *http.Request) {
	h.writeIdentity(w, http.StatusOK)
}

func (h *Handler) writeIdentity(w http.ResponseWriter, status int) {
	id, ok := h.accounts.Identity()
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("user", id.Encode)
		})
	})
}
