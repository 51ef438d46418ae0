package inspect

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/factory"
	"github.com/kbukum/beankit/observability"
	"github.com/kbukum/beankit/version"
)

// HealthFunc reports the health of the managed objects.
type HealthFunc func(ctx context.Context) *observability.ServiceHealth

// Handler serves the inspection routes for one factory.
type Handler struct {
	factory *factory.Factory
	health  HealthFunc
}

// NewHandler creates a handler for f. health may be nil, in which case
// /health always reports up.
func NewHandler(f *factory.Factory, health HealthFunc) *Handler {
	return &Handler{factory: f, health: health}
}

// Register mounts the inspection routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/beans", h.listBeans)
	r.GET("/beans/:name", h.getBean)
	r.GET("/graph", h.graph)
	r.GET("/health", h.healthCheck)
	r.GET("/version", h.version)
}

func (h *Handler) listBeans(c *gin.Context) {
	f := h.factory
	built := f.SingletonNames()
	names := f.DescriptorNames()
	out := make([]BeanSummary, 0, len(names))
	for _, name := range names {
		d, err := f.Descriptor(name)
		if err != nil {
			// A descriptor whose parent is missing is still listed.
			out = append(out, BeanSummary{Name: name, Scope: "unknown"})
			continue
		}
		out = append(out, h.summary(name, d, slices.Contains(built, name)))
	}
	for _, name := range f.ManualSingletonNames() {
		out = append(out, h.manualSummary(c.Request.Context(), name))
	}
	c.JSON(http.StatusOK, gin.H{"beans": out, "count": len(out)})
}

func (h *Handler) getBean(c *gin.Context) {
	f := h.factory
	name := f.Registry().Canonical(c.Param("name"))
	graph := f.Graph()

	var detail BeanDetail
	switch {
	case slices.Contains(f.ManualSingletonNames(), name):
		detail.BeanSummary = h.manualSummary(c.Request.Context(), name)
	case f.Registry().Contains(name):
		d, err := f.Descriptor(name)
		if err != nil {
			respondError(c, err)
			return
		}
		detail = h.detail(name, d)
	default:
		respondError(c, errors.MissingDescriptor(name))
		return
	}
	detail.Dependencies = nonNil(graph.Dependencies(name))
	detail.Dependents = nonNil(graph.Dependents(name))
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) graph(c *gin.Context) {
	f := h.factory
	nodes := append(f.DescriptorNames(), f.ManualSingletonNames()...)
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n] = true
	}

	g := Graph{Nodes: nodes, Edges: []Edge{}}
	edges := f.Graph().Edges()
	for _, from := range nodes {
		for _, to := range edges[from] {
			g.Edges = append(g.Edges, Edge{From: from, To: to})
			if !known[to] {
				known[to] = true
				g.Nodes = append(g.Nodes, to)
			}
		}
	}

	levels, err := f.Graph().Levels(g.Nodes)
	if err != nil {
		g.Cycle = err.Error()
	} else {
		g.Levels = levels
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) healthCheck(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, observability.NewServiceHealth("", ""))
		return
	}
	sh := h.health(c.Request.Context())
	status := http.StatusOK
	if sh.Status == observability.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, sh)
}

func (h *Handler) summary(name string, d *descriptor.Descriptor, built bool) BeanSummary {
	scope := d.Scope
	if scope == "" {
		scope = descriptor.ScopeSingleton
	}
	return BeanSummary{
		Name:        name,
		Type:        d.TypeLabel(),
		Scope:       scope,
		Lazy:        d.LazyInit,
		Primary:     d.Primary,
		Abstract:    d.Abstract,
		Initialized: built,
		Aliases:     h.factory.Registry().Aliases(name),
	}
}

func (h *Handler) manualSummary(ctx context.Context, name string) BeanSummary {
	s := BeanSummary{
		Name:        name,
		Scope:       descriptor.ScopeSingleton,
		Manual:      true,
		Initialized: true,
		Aliases:     h.factory.Registry().Aliases(name),
	}
	if obj, err := h.factory.GetBean(ctx, name); err == nil {
		s.Type = fmt.Sprintf("%T", obj)
	}
	return s
}

func (h *Handler) detail(name string, d *descriptor.Descriptor) BeanDetail {
	detail := BeanDetail{
		BeanSummary:   h.summary(name, d, slices.Contains(h.factory.SingletonNames(), name)),
		Parent:        d.Parent,
		Description:   d.Description,
		DependsOn:     d.DependsOn,
		FactoryBean:   d.FactoryBean,
		FactoryMethod: d.FactoryMethod,
		InitMethod:    d.InitMethod,
		DestroyMethod: d.DestroyMethod,
	}
	if len(d.Qualifiers) > 0 {
		detail.Qualifiers = make(map[string]string, len(d.Qualifiers))
		for typ, q := range d.Qualifiers {
			detail.Qualifiers[typ] = q.Value
		}
	}
	if keys := d.AttributeNames(); len(keys) > 0 {
		detail.Attributes = make(map[string]any, len(keys))
		for _, k := range keys {
			detail.Attributes[k], _ = d.Attribute(k)
		}
	}
	return detail
}

func (h *Handler) version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}

func respondError(c *gin.Context, err error) {
	var be *errors.BeanError
	if stderrors.As(err, &be) {
		c.JSON(be.HTTPStatus(), be.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error()}})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
