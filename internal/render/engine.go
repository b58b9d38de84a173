// Package render drives the browser-hosted scriptable editor that composites
// a poster from a template document, a user photo, and named substitutions.
// The editor reports its result out-of-band, so completion is detected by
// polling a well-known page slot under a hard deadline.
package render

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"posterforge/internal/domain"
	"posterforge/internal/infra"
)

// Progress labels emitted while a render advances. Human-readable phase
// names, not percentages; the client renders them verbatim.
const (
	PhaseOpeningTemplate = "Opening template"
	PhaseInsertingText   = "Inserting car details"
	PhaseInsertingImage  = "Carefully inserting your image"
	PhaseCleaningUp      = "Cleaning up the edges"
)

// ProgressFunc receives phase labels as rendering advances. Implementations
// must be cheap; they are called from the render loop.
type ProgressFunc func(label string)

// Request carries everything the editor needs to composite one poster.
type Request struct {
	TemplateURL    string
	UserImageURL   string
	Texts          map[string]string
	SupportedTexts []string
	Fonts          []string
	HexColour      string
	HexElements    map[string]string
}

// Engine produces a flattened raster from a render request.
type Engine interface {
	Render(ctx context.Context, req Request, progress ProgressFunc) ([]byte, error)
}

// session is one live browser page hosting the editor. Close must release
// the page and the browser process; the engine guarantees it runs on every
// exit path.
type session interface {
	Navigate(ctx context.Context, pageURL string) error
	Evaluate(ctx context.Context, expr string, out any) error
	Close() error
}

type sessionFactory func(ctx context.Context) (session, error)

// Options configures the editor engine.
type Options struct {
	HostURL      string
	PollInterval time.Duration
	PollTimeout  time.Duration
	Logger       *infra.Logger

	// newSession overrides browser startup; tests use it to count open and
	// close calls. Defaults to a headless Chromium session.
	newSession sessionFactory
}

// EditorEngine implements Engine against the hosted editor page.
type EditorEngine struct {
	hostURL      string
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *infra.Logger
	newSession   sessionFactory
}

// NewEditorEngine constructs the engine with sane defaults.
func NewEditorEngine(opts Options) (*EditorEngine, error) {
	if strings.TrimSpace(opts.HostURL) == "" {
		return nil, fmt.Errorf("render: host url is required")
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 60 * time.Second
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	factory := opts.newSession
	if factory == nil {
		factory = newChromiumSession
	}
	return &EditorEngine{
		hostURL:      strings.TrimRight(opts.HostURL, "/"),
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
		newSession:   factory,
	}, nil
}

// substitutionDoc is the structured payload handed to the editor page. It is
// serialized as JSON, shipped as a single string literal, and parsed back on
// the page side before reaching the apply function: substituted values cross
// the boundary as data, so a hostile description or handle cannot break out
// of the scripting context.
type substitutionDoc struct {
	Texts          map[string]string `json:"texts"`
	SupportedTexts []string          `json:"supportedTexts"`
	Fonts          []string          `json:"fonts"`
	HexColour      string            `json:"hexColour,omitempty"`
	HexElements    map[string]string `json:"hexElements,omitempty"`
}

// Render opens the editor, applies the substitutions, and polls for the
// exported raster. The session is closed on every exit path. A completion
// signal that never appears within the poll timeout is domain.ErrRenderTimeout;
// there is no partial-result recovery.
func (e *EditorEngine) Render(ctx context.Context, req Request, progress ProgressFunc) ([]byte, error) {
	if progress == nil {
		progress = func(string) {}
	}
	if req.TemplateURL == "" || req.UserImageURL == "" {
		return nil, fmt.Errorf("%w: template and user image are required", domain.ErrRenderFailed)
	}

	sess, err := e.newSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: start browser: %v", domain.ErrRenderFailed, err)
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			e.logger.Warn().Err(closeErr).Msg("render: session close failed")
		}
	}()

	progress(PhaseOpeningTemplate)
	pageURL := fmt.Sprintf("%s?%s", e.hostURL, url.Values{
		"template": {req.TemplateURL},
		"image":    {req.UserImageURL},
	}.Encode())
	if err := sess.Navigate(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("%w: open editor: %v", domain.ErrRenderFailed, err)
	}
	if err := e.awaitEditorReady(ctx, sess); err != nil {
		return nil, err
	}

	progress(PhaseInsertingText)
	doc, err := json.Marshal(substitutionDoc{
		Texts:          req.Texts,
		SupportedTexts: req.SupportedTexts,
		Fonts:          req.Fonts,
		HexColour:      req.HexColour,
		HexElements:    req.HexElements,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode substitutions: %v", domain.ErrRenderFailed, err)
	}
	// The document crosses into the page as one string literal and is parsed
	// back into data there. Evaluating it as an object literal would let a
	// key like "__proto__" rewrite the argument's prototype instead of
	// arriving as a plain own property.
	quoted, err := json.Marshal(string(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: encode substitutions: %v", domain.ErrRenderFailed, err)
	}
	var applied bool
	if err := sess.Evaluate(ctx, "window.__pfApply(JSON.parse("+string(quoted)+"))", &applied); err != nil {
		return nil, fmt.Errorf("%w: apply substitutions: %v", domain.ErrRenderFailed, err)
	}
	if !applied {
		return nil, fmt.Errorf("%w: editor rejected substitutions", domain.ErrRenderFailed)
	}

	progress(PhaseInsertingImage)
	encoded, err := e.awaitResult(ctx, sess)
	if err != nil {
		return nil, err
	}

	progress(PhaseCleaningUp)
	raster, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode exported raster: %v", domain.ErrRenderFailed, err)
	}
	if len(raster) == 0 {
		return nil, fmt.Errorf("%w: editor exported an empty raster", domain.ErrRenderFailed)
	}
	return raster, nil
}

// awaitEditorReady polls the page's ready flag under the same deadline as
// the result poll; a template that never loads is a timeout too.
func (e *EditorEngine) awaitEditorReady(ctx context.Context, sess session) error {
	return e.poll(ctx, func() (bool, error) {
		var ready bool
		if err := sess.Evaluate(ctx, "window.__pfReady === true", &ready); err != nil {
			return false, fmt.Errorf("%w: poll editor ready: %v", domain.ErrRenderFailed, err)
		}
		return ready, nil
	})
}

// awaitResult polls the well-known result slot until the editor deposits the
// exported raster.
func (e *EditorEngine) awaitResult(ctx context.Context, sess session) (string, error) {
	var encoded string
	err := e.poll(ctx, func() (bool, error) {
		if evalErr := sess.Evaluate(ctx, "window.__pfResult || ''", &encoded); evalErr != nil {
			return false, fmt.Errorf("%w: poll result: %v", domain.ErrRenderFailed, evalErr)
		}
		return encoded != "", nil
	})
	if err != nil {
		return "", err
	}
	return encoded, nil
}

func (e *EditorEngine) poll(ctx context.Context, check func() (bool, error)) error {
	deadline := time.NewTimer(e.pollTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(e.pollInterval)
	defer tick.Stop()

	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrRenderTimeout, ctx.Err())
		case <-deadline.C:
			return fmt.Errorf("%w: no completion signal within %s", domain.ErrRenderTimeout, e.pollTimeout)
		case <-tick.C:
		}
	}
}
