package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/Tyrowin/messenger/internal/entities"
)

//go:embed templates/index.html
var defaultIndexTemplate string

// initialState is serialized into the bootstrap page for the client to start from.
type initialState struct {
	CurrentUser string             `json:"currentUser"`
	Users       []entities.User    `json:"users"`
	Channels    []entities.Channel `json:"channels"`
}

type pageData struct {
	State       template.JS
	CurrentUser entities.User
	Channels    []entities.Channel
	UserNames   map[string]string
}

type bootstrapPage struct {
	tmpl *template.Template
}

// newBootstrapPage parses the page template from path, or the embedded default
// when path is empty.
func newBootstrapPage(path string) (*bootstrapPage, error) {
	var (
		tmpl *template.Template
		err  error
	)
	if path == "" {
		tmpl, err = template.New("index.html").Parse(defaultIndexTemplate)
	} else {
		tmpl, err = template.ParseFiles(path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse index template: %w", err)
	}
	return &bootstrapPage{tmpl: tmpl}, nil
}

// render executes the page for state. The JSON encoder escapes <, > and &, so the
// state can be embedded in a script element as is.
func (p *bootstrapPage) render(state initialState) ([]byte, error) {
	encoded, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode initial state: %w", err)
	}

	names := lo.SliceToMap(state.Users, func(u entities.User) (string, string) {
		return u.ID, u.Name
	})
	current, _ := lo.Find(state.Users, func(u entities.User) bool {
		return u.ID == state.CurrentUser
	})

	var buf bytes.Buffer
	err = p.tmpl.Execute(&buf, pageData{
		State:       template.JS(encoded),
		CurrentUser: current,
		Channels:    state.Channels,
		UserNames:   names,
	})
	if err != nil {
		return nil, fmt.Errorf("render index template: %w", err)
	}
	return buf.Bytes(), nil
}

// Bootstrap renders the initial page seeded with the state at the instant of the call.
func (h *Handlers) Bootstrap(c echo.Context) error {
	snapshot := h.messenger.Snapshot()

	body, err := h.page.render(initialState{
		CurrentUser: h.currentUser,
		Users:       snapshot.Users,
		Channels:    snapshot.Channels,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to render bootstrap page")
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.HTMLBlob(http.StatusOK, body)
}
