// Package engine renders templates end to end.
//
// A render loads the template through the configured loader, parses it into
// a pagecontroller.Document, attaches the controller named by the template's
// controller directive, applies request data and placeholder values and
// transforms the tree. Output is cached per template and sub key when the
// cache is enabled.
package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/a-h/templ"
	"github.com/conneroisu/tagdoc/internal/benchmark"
	"github.com/conneroisu/tagdoc/internal/cache"
	"github.com/conneroisu/tagdoc/internal/config"
	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/conneroisu/tagdoc/internal/htmlheader"
	"github.com/conneroisu/tagdoc/internal/loader"
	"github.com/conneroisu/tagdoc/internal/logging"
	"github.com/conneroisu/tagdoc/internal/pagecontroller"
)

// ControllerFactory creates a fresh controller for one render.
type ControllerFactory func() pagecontroller.Controller

// RenderRequest names a template and the values to render it with.
type RenderRequest struct {
	Namespace string
	Name      string

	// Data is stored on the document before the controller runs.
	Data map[string]any

	// PlaceHolders are set on the document's direct placeholder children.
	PlaceHolders map[string]string

	// Append adds placeholder values to the placeholders' current content
	// instead of replacing it.
	Append bool

	// CacheSubKey identifies the variant of the template being rendered.
	// Requests carrying Data or PlaceHolders are only cached when it is set.
	CacheSubKey string

	// Timer receives the render's sections. When nil and benchmarking is
	// enabled the engine uses a timer of its own and logs the report.
	Timer *benchmark.Timer
}

// Engine renders templates. It is safe for concurrent use; each render
// works on its own document.
type Engine struct {
	config      *config.Config
	logger      logging.Logger
	loader      pagecontroller.Loader
	cache       cache.Provider
	controllers map[string]ControllerFactory
	mutex       sync.RWMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLoader replaces the file loader built from the configuration.
func WithLoader(l pagecontroller.Loader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithCache replaces the memory cache built from the configuration. A nil
// provider disables caching.
func WithCache(p cache.Provider) Option {
	return func(e *Engine) {
		e.cache = p
	}
}

// WithController registers a controller factory for class.
func WithController(class string, factory ControllerFactory) Option {
	return func(e *Engine) {
		e.controllers[class] = factory
	}
}

// New creates an engine for cfg. A nil cfg uses the configuration defaults.
func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = defaultConfig()
	}

	e := &Engine{
		config:      cfg,
		logger:      logging.NewNopLogger(),
		loader:      loader.New(cfg.Templates.Vendors, loader.WithExtension(cfg.Templates.Extension)),
		controllers: make(map[string]ControllerFactory),
	}
	if cfg.Cache.Enabled {
		e.cache = cache.NewMemoryProvider(cfg.Cache.Namespace, cfg.Cache.MaxSize, cfg.Cache.TTL)
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("engine")

	if cfg.Templates.HTMLHeader {
		if err := htmlheader.RegisterDefaults(); err != nil {
			e.logger.Error(context.Background(), err, "Cannot register htmlheader taglib")
		}
	}
	return e
}

func defaultConfig() *config.Config {
	return &config.Config{
		Templates: config.TemplatesConfig{
			Vendors:   map[string]string{},
			Extension: config.DefaultExtension,
		},
		Benchmark: config.BenchmarkConfig{CriticalTime: config.DefaultCriticalTime},
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.config
}

// Cache returns the cache provider, or nil when caching is off.
func (e *Engine) Cache() cache.Provider {
	return e.cache
}

// RegisterController binds a controller class to a factory, replacing any
// earlier binding.
func (e *Engine) RegisterController(class string, factory ControllerFactory) error {
	if class == "" || factory == nil {
		return docerrors.NewInvalidArgumentError("INVALID_CONTROLLER",
			"controller class and factory are required")
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.controllers[class] = factory
	return nil
}

// Controllers returns the registered controller classes in sorted order.
func (e *Engine) Controllers() []string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	classes := make([]string, 0, len(e.controllers))
	for class := range e.controllers {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}

// NewDocument creates an empty document that imports through the engine's
// loader.
func (e *Engine) NewDocument() *pagecontroller.Document {
	return pagecontroller.NewDocument(pagecontroller.WithLoader(e.loader))
}

// Parse builds a document from content without rendering it.
func (e *Engine) Parse(ctx context.Context, content string) (*pagecontroller.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := e.NewDocument()
	doc.SetContent(content)
	if err := doc.Parse(); err != nil {
		e.logger.Warn(ctx, err, "Parse failed")
		return nil, err
	}
	return doc, nil
}

// Render loads, parses and transforms the template named by req.
func (e *Engine) Render(ctx context.Context, req RenderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	log := e.logger.With("namespace", req.Namespace, "template", req.Name)
	op := logging.StartOperation(log, "render")
	timer, own := e.timerFor(req)

	key, cacheable := e.cacheKey(req)
	if cacheable {
		if out, ok := e.cache.Read(key); ok {
			log.Debug(ctx, "Cache hit", "subkey", key.SubKey)
			op.End(ctx)
			return string(out), nil
		}
	}

	var content string
	err := timer.Measure("load", func() error {
		var err error
		content, err = e.loader.Load(req.Namespace, req.Name)
		return err
	})
	if err != nil {
		op.EndWithError(ctx, err)
		return "", err
	}

	out, err := e.render(ctx, content, req, timer)
	if own {
		e.logReport(ctx, log, timer)
	}
	if err != nil {
		op.EndWithError(ctx, err)
		return "", err
	}

	if cacheable {
		if err := e.cache.Write(key, []byte(out)); err != nil {
			log.Warn(ctx, err, "Cannot cache rendered template")
		}
	}
	op.End(ctx)
	return out, nil
}

// RenderString renders inline template content. The result is never
// cached; Namespace and Name of req are ignored.
func (e *Engine) RenderString(ctx context.Context, content string, req RenderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	log := e.logger.With("template", "inline")
	op := logging.StartOperation(log, "render")
	timer, own := e.timerFor(req)

	out, err := e.render(ctx, content, req, timer)
	if own {
		e.logReport(ctx, log, timer)
	}
	if err != nil {
		op.EndWithError(ctx, err)
		return "", err
	}
	op.End(ctx)
	return out, nil
}

func (e *Engine) render(ctx context.Context, content string, req RenderRequest, timer *benchmark.Timer) (string, error) {
	doc := e.NewDocument()
	doc.SetContent(content)

	if err := timer.Measure("parse", doc.Parse); err != nil {
		return "", err
	}

	if err := timer.Measure("controller", func() error {
		return e.attachController(doc)
	}); err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	for key, value := range req.Data {
		doc.SetData(key, value)
	}
	if err := applyPlaceHolders(doc, req.PlaceHolders, req.Append); err != nil {
		return "", err
	}

	var out string
	err := timer.Measure("transform", func() error {
		var err error
		out, err = doc.Transform()
		return err
	})
	return out, err
}

func (e *Engine) attachController(doc *pagecontroller.Document) error {
	class := doc.ControllerClass()
	if class == "" {
		return nil
	}

	e.mutex.RLock()
	factory, ok := e.controllers[class]
	e.mutex.RUnlock()
	if !ok {
		return docerrors.NewInvalidArgumentError("UNKNOWN_CONTROLLER",
			fmt.Sprintf("no controller registered for class %q", class)).
			WithContext("class", class)
	}
	doc.AttachController(factory())
	return nil
}

func applyPlaceHolders(doc *pagecontroller.Document, values map[string]string, appendValue bool) error {
	if !appendValue {
		return doc.SetPlaceHolders(values)
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := doc.SetPlaceHolder(name, values[name], true); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate drops every cached variant of a template.
func (e *Engine) Invalidate(namespace, name string) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Clear(&cache.Key{Key: templateKey(namespace, name)})
}

// InvalidateAll drops the whole render cache.
func (e *Engine) InvalidateAll() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Clear(nil)
}

func templateKey(namespace, name string) string {
	return namespace + `\` + name
}

func (e *Engine) cacheKey(req RenderRequest) (cache.Key, bool) {
	if e.cache == nil {
		return cache.Key{}, false
	}
	if (len(req.Data) > 0 || len(req.PlaceHolders) > 0) && req.CacheSubKey == "" {
		return cache.Key{}, false
	}
	return cache.Key{Key: templateKey(req.Namespace, req.Name), SubKey: req.CacheSubKey}, true
}

func (e *Engine) timerFor(req RenderRequest) (*benchmark.Timer, bool) {
	if req.Timer != nil {
		return req.Timer, false
	}
	timer := benchmark.New()
	timer.SetCriticalTime(e.config.Benchmark.CriticalTime)
	if !e.config.Benchmark.Enabled {
		timer.Disable()
	}
	return timer, true
}

func (e *Engine) logReport(ctx context.Context, log logging.Logger, timer *benchmark.Timer) {
	if !timer.Enabled() {
		return
	}
	for _, r := range timer.Report() {
		if r.Critical {
			log.Warn(ctx, nil, "Critical render section", "section", r.Name, "duration", r.Duration.String())
			continue
		}
		log.Debug(ctx, "Render section", "section", r.Name, "depth", r.Depth, "duration", r.Duration.String())
	}
}

// Component adapts a render to templ.Component so it can be served with
// templ.Handler or embedded in templ layouts.
func (e *Engine) Component(req RenderRequest) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out, err := e.Render(ctx, req)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	})
}
