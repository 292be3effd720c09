// ABOUTME: Plugin admin routes: status listing, enable/disable, and resource views.
// ABOUTME: Resource pages render plugin data through the schema renderer.

package admin

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/2389/vault/internal/auth"
	apierr "github.com/2389/vault/internal/errors"
	"github.com/2389/vault/internal/host"
	"github.com/2389/vault/internal/lifecycle"
	"github.com/2389/vault/plugins/core"
)

const resourcePageSize = 50

type pluginView struct {
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	Description   string            `json:"description,omitempty"`
	APIConstraint string            `json:"api_constraint,omitempty"`
	Compatible    bool              `json:"compatible"`
	Incompatible  string            `json:"incompatible_reason,omitempty"`
	Enabled       bool              `json:"enabled"`
	Health        core.HealthStatus `json:"health"`
	Offers        int               `json:"offers"`
	Rejected      int               `json:"rejected"`
	Resources     []string          `json:"resources,omitempty"`
}

func (h *Handlers) pluginsList(w http.ResponseWriter, r *http.Request) {
	statuses := h.host.Statuses()
	out := make([]pluginView, 0, len(statuses))
	for _, st := range statuses {
		pv := pluginView{
			Name:          st.Manifest.Name,
			Version:       st.Manifest.Version,
			Description:   st.Manifest.Description,
			APIConstraint: st.Manifest.APIConstraint,
			Compatible:    true,
			Enabled:       st.Enabled,
			Health:        st.Health,
			Offers:        st.Offers,
			Rejected:      st.Rejected,
		}
		if err := h.host.Compatible(st.Manifest); err != nil {
			pv.Compatible = false
			pv.Incompatible = err.Error()
		}
		if p, ok := h.host.Plugin(st.Manifest.Name); ok {
			for _, res := range p.Schema().Resources {
				pv.Resources = append(pv.Resources, res.Slug)
			}
		}
		out = append(out, pv)
	}
	writeJSON(w, http.StatusOK, out)
}

type rejectionView struct {
	Offer string `json:"offer"`
	Error string `json:"error"`
}

type resultView struct {
	Plugin     string          `json:"plugin"`
	Registered []uint64        `json:"registered"`
	Removed    []providerView  `json:"removed"`
	Rejected   []rejectionView `json:"rejected"`
}

func newResultView(name string, res lifecycle.Result) resultView {
	rv := resultView{
		Plugin:     name,
		Registered: make([]uint64, 0, len(res.Registered)),
		Removed:    make([]providerView, 0, len(res.Removed)),
		Rejected:   make([]rejectionView, 0, len(res.Rejected)),
	}
	for _, id := range res.Registered {
		rv.Registered = append(rv.Registered, uint64(id))
	}
	for _, rec := range res.Removed {
		rv.Removed = append(rv.Removed, newProviderView(rec, false))
	}
	for _, rej := range res.Rejected {
		rv.Rejected = append(rv.Rejected, rejectionView{Offer: rej.Offer.String(), Error: rej.Err.Error()})
	}
	return rv
}

func (h *Handlers) pluginEnable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	res, err := h.host.Enable(r.Context(), name)
	if err != nil {
		h.writeHostError(w, name, err)
		return
	}
	h.log.WithFields(logrus.Fields{
		"plugin": name,
		"actor":  auth.ActorFromContext(r.Context()),
	}).Info("plugin enabled via admin")
	writeJSON(w, http.StatusOK, newResultView(name, res))
}

func (h *Handlers) pluginDisable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	res, err := h.host.Disable(r.Context(), name)
	if err != nil {
		h.writeHostError(w, name, err)
		return
	}
	h.log.WithFields(logrus.Fields{
		"plugin": name,
		"actor":  auth.ActorFromContext(r.Context()),
	}).Info("plugin disabled via admin")
	writeJSON(w, http.StatusOK, newResultView(name, res))
}

func (h *Handlers) writeHostError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, host.ErrPluginNotFound):
		apierr.WriteErrorWithField(w, http.StatusNotFound, apierr.ErrPluginNotFound, err.Error(), "name")
	case errors.Is(err, host.ErrAlreadyEnabled):
		apierr.WriteError(w, http.StatusConflict, apierr.ErrAlreadyEnabled, err.Error())
	case errors.Is(err, host.ErrNotEnabled):
		apierr.WriteError(w, http.StatusConflict, apierr.ErrNotEnabled, err.Error())
	case errors.Is(err, host.ErrIncompatibleAPI):
		apierr.WriteError(w, http.StatusConflict, apierr.ErrIncompatibleAPI, err.Error())
	default:
		h.log.WithField("plugin", name).WithError(err).Error("plugin lifecycle call failed")
		apierr.WriteErrorWithDetails(w, http.StatusInternalServerError, apierr.ErrPluginFailed,
			fmt.Sprintf("plugin %s failed", name), err.Error())
	}
}

// pluginResourceList renders one page of a plugin resource as an HTML table.
func (h *Handlers) pluginResourceList(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	slug := chi.URLParam(r, "resource")

	plugin, ok := h.host.Plugin(name)
	if !ok {
		apierr.WriteErrorWithField(w, http.StatusNotFound, apierr.ErrPluginNotFound, "no plugin named "+name, "name")
		return
	}
	schema := plugin.Schema().FindResource(slug)
	if schema == nil {
		apierr.WriteErrorWithField(w, http.StatusNotFound, apierr.ErrNotFound, "no resource named "+slug, "resource")
		return
	}
	dp, ok := plugin.(core.DataProvider)
	if !ok {
		apierr.WriteError(w, http.StatusNotFound, apierr.ErrNotFound, name+" does not expose resource data")
		return
	}
	if !h.host.Enabled(name) {
		apierr.WriteError(w, http.StatusConflict, apierr.ErrNotEnabled, name+" is not enabled")
		return
	}

	offset, ok := intParam(w, r, "offset")
	if !ok {
		return
	}

	rows, err := dp.ListResources(r.Context(), slug, core.ListOptions{Limit: resourcePageSize, Offset: offset})
	if err != nil {
		h.log.WithFields(logrus.Fields{"plugin": name, "resource": slug}).WithError(err).Error("list resources failed")
		apierr.WriteErrorWithDetails(w, http.StatusInternalServerError, apierr.ErrPluginFailed,
			fmt.Sprintf("failed to list %s", slug), err.Error())
		return
	}

	page := pageData{
		Title:    fmt.Sprintf("%s: %s", name, schema.Name),
		Subtitle: plugin.Manifest().Description,
		Body:     template.HTML(RenderResourceList(*schema, rows)),
	}
	base := fmt.Sprintf("/admin/plugins/%s/resources/%s", name, slug)
	if offset > 0 {
		page.Prev = fmt.Sprintf("%s?offset=%d", base, max(0, offset-resourcePageSize))
	}
	if len(rows) == resourcePageSize {
		page.Next = fmt.Sprintf("%s?offset=%d", base, offset+resourcePageSize)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderPage(w, page); err != nil {
		h.log.WithError(err).Error("render page failed")
	}
}
