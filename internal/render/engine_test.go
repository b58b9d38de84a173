package render

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posterforge/internal/domain"
)

// fakeSession scripts the editor page's behavior and counts lifecycle calls
// so tests can verify the scoped-resource obligation.
type fakeSession struct {
	readyAfter  int
	resultAfter int
	result      string
	applyOK     bool

	navigated  []string
	applied    []string
	readyPolls int
	resultPoll int
	closed     int
}

func (s *fakeSession) Navigate(ctx context.Context, pageURL string) error {
	s.navigated = append(s.navigated, pageURL)
	return nil
}

func (s *fakeSession) Evaluate(ctx context.Context, expr string, out any) error {
	switch {
	case strings.HasPrefix(expr, "window.__pfReady"):
		s.readyPolls++
		*out.(*bool) = s.readyPolls > s.readyAfter
	case strings.HasPrefix(expr, "window.__pfApply("):
		s.applied = append(s.applied, expr)
		*out.(*bool) = s.applyOK
	case strings.HasPrefix(expr, "window.__pfResult"):
		s.resultPoll++
		if s.resultAfter >= 0 && s.resultPoll > s.resultAfter {
			*out.(*string) = s.result
		} else {
			*out.(*string) = ""
		}
	}
	return nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func newTestEngine(t *testing.T, sess *fakeSession, opened *int) *EditorEngine {
	t.Helper()
	engine, err := NewEditorEngine(Options{
		HostURL:      "http://editor.test/host",
		PollInterval: time.Millisecond,
		PollTimeout:  50 * time.Millisecond,
		newSession: func(ctx context.Context) (session, error) {
			if opened != nil {
				*opened++
			}
			return sess, nil
		},
	})
	require.NoError(t, err)
	return engine
}

func testRequest() Request {
	return Request{
		TemplateURL:    "https://cdn.test/templates/classic.psd",
		UserImageURL:   "https://cdn.test/uploads/photo.jpg",
		Texts:          map[string]string{"make": "BMW", "model": "M3", "year": "2019"},
		SupportedTexts: []string{"make", "model", "year"},
		Fonts:          []string{"Anton"},
		HexColour:      "#ff2a00",
	}
}

func TestRenderHappyPathEmitsPhasesInOrder(t *testing.T) {
	raster := []byte("flattened-raster")
	sess := &fakeSession{
		applyOK:     true,
		resultAfter: 2,
		result:      base64.StdEncoding.EncodeToString(raster),
	}
	opened := 0
	engine := newTestEngine(t, sess, &opened)

	var phases []string
	got, err := engine.Render(context.Background(), testRequest(), func(label string) {
		phases = append(phases, label)
	})
	require.NoError(t, err)
	assert.Equal(t, raster, got)
	assert.Equal(t, []string{PhaseOpeningTemplate, PhaseInsertingText, PhaseInsertingImage, PhaseCleaningUp}, phases)
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, sess.closed)
	require.Len(t, sess.navigated, 1)
	assert.Contains(t, sess.navigated[0], "template=")
	assert.Contains(t, sess.navigated[0], "image=")
}

func TestRenderTimeoutClosesSession(t *testing.T) {
	sess := &fakeSession{applyOK: true, resultAfter: 1 << 30} // completion signal never appears
	opened := 0
	engine := newTestEngine(t, sess, &opened)

	_, err := engine.Render(context.Background(), testRequest(), nil)
	require.ErrorIs(t, err, domain.ErrRenderTimeout)
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, sess.closed, "browser must be released on timeout")
}

func TestRenderApplyRejectionClosesSession(t *testing.T) {
	sess := &fakeSession{applyOK: false}
	engine := newTestEngine(t, sess, nil)

	_, err := engine.Render(context.Background(), testRequest(), nil)
	require.ErrorIs(t, err, domain.ErrRenderFailed)
	assert.Equal(t, 1, sess.closed)
}

func TestRenderSubstitutionsTravelAsData(t *testing.T) {
	hostile := `"; window.__pfResult = "owned"; //</script>`
	req := testRequest()
	req.Texts["description"] = hostile
	// A key an object literal would swallow into the prototype chain; it
	// must reach the page as a plain own property.
	req.HexElements = map[string]string{"__proto__": "#bad0ff"}

	sess := &fakeSession{
		applyOK: true,
		result:  base64.StdEncoding.EncodeToString([]byte("ok")),
	}
	engine := newTestEngine(t, sess, nil)

	_, err := engine.Render(context.Background(), req, nil)
	require.NoError(t, err)

	require.Len(t, sess.applied, 1)
	expr := sess.applied[0]
	require.True(t, strings.HasPrefix(expr, "window.__pfApply(JSON.parse("),
		"substitutions must be delivered as a parsed string, not an object literal")
	payload := strings.TrimSuffix(strings.TrimPrefix(expr, "window.__pfApply(JSON.parse("), "))")

	var shipped string
	require.NoError(t, json.Unmarshal([]byte(payload), &shipped),
		"apply argument must be a single string literal")
	var doc struct {
		Texts       map[string]string `json:"texts"`
		HexElements map[string]string `json:"hexElements"`
	}
	require.NoError(t, json.Unmarshal([]byte(shipped), &doc),
		"shipped string must parse back into the substitution document")
	assert.Equal(t, hostile, doc.Texts["description"], "hostile text survives as data, not script")
	assert.Equal(t, "#bad0ff", doc.HexElements["__proto__"], "hostile key survives as an own property")
}

func TestRenderRequiresInputs(t *testing.T) {
	engine := newTestEngine(t, &fakeSession{}, nil)
	_, err := engine.Render(context.Background(), Request{}, nil)
	require.ErrorIs(t, err, domain.ErrRenderFailed)
}
