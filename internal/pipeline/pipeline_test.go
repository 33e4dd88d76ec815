package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/kylejryan/course-certificate-generator/internal/api"
	"github.com/kylejryan/course-certificate-generator/internal/models"
	"github.com/kylejryan/course-certificate-generator/internal/pdfconv"
	"github.com/kylejryan/course-certificate-generator/internal/render"
	"github.com/kylejryan/course-certificate-generator/internal/storage"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type upload struct {
	key         string
	body        []byte
	contentType string
}

type fakeStore struct {
	uploads []upload
	err     error
}

func (f *fakeStore) Upload(_ context.Context, key string, body []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, upload{key, body, contentType})
	return "https://certs.s3.amazonaws.com/" + key + "?X-Amz-Expires=604800&X-Amz-Signature=abc", nil
}

type failingRenderer struct{}

func (failingRenderer) Render(map[string]any) ([]byte, error) {
	return nil, errors.New("template exploded")
}

type panickingRenderer struct{}

func (panickingRenderer) Render(map[string]any) ([]byte, error) { panic("boom") }

var fixedNow = time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

func newPipeline(store Uploader, log *zap.Logger, opts ...Option) *Pipeline {
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithRand(func(int) int { return 41 }),
	}, opts...)
	return New(render.NewNaive(""), store, log, opts...)
}

const janeDoe = `{"recipient_name":"Jane Doe","course_title":"Advanced Widgets","tier_level":2,"completion_date":"2024-03-15","user_id":"u1","course_id":"c1"}`

func decode(t *testing.T, resp events.APIGatewayProxyResponse) map[string]any {
	t.Helper()
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &m))
	return m
}

func TestHandleEndToEndHTML(t *testing.T) {
	store := &fakeStore{}
	p := newPipeline(store, nil)

	resp, err := p.Handle(context.Background(), json.RawMessage(janeDoe))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "CERT-2024-0042", body["certificate_number"])
	assert.Regexp(t, regexp.MustCompile(`^CERT-\d{4}-\d{4}$`), body["certificate_number"])
	assert.Equal(t, "Certificate generated successfully for Jane Doe", body["message"])
	assert.Equal(t, api.NoteHTMLOnlyBuild, body["note"])

	u, err := url.Parse(body["certificate_url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.NotEmpty(t, u.Host)

	require.Len(t, store.uploads, 1)
	up := store.uploads[0]
	assert.Equal(t, "certificates/u1/c1/cert-CERT-2024-0042.html", up.key)
	assert.Equal(t, "text/html", up.contentType)
	html := string(up.body)
	assert.Contains(t, html, "Jane Doe")
	assert.Contains(t, html, "Mastery Program")
	assert.Contains(t, html, "#95A5A6")
	assert.Contains(t, html, "March 15, 2024")
}

func TestHandleEndToEndPDF(t *testing.T) {
	engine, err := render.NewEngine(nil, "")
	require.NoError(t, err)
	store := &fakeStore{}
	p := New(engine, store, nil,
		WithConverter(pdfconv.PDF{}),
		WithClock(func() time.Time { return fixedNow }),
		WithRand(func(int) int { return 41 }))

	resp, err := p.Handle(context.Background(), json.RawMessage(janeDoe))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	body := decode(t, resp)
	_, hasNote := body["note"]
	assert.False(t, hasNote)

	require.Len(t, store.uploads, 1)
	assert.Equal(t, "certificates/u1/c1/cert-CERT-2024-0042.pdf", store.uploads[0].key)
	assert.Equal(t, "application/pdf", store.uploads[0].contentType)
	assert.True(t, strings.HasPrefix(string(store.uploads[0].body), "%PDF-"))
}

func TestHandleBlankNameMatchesAcrossFormats(t *testing.T) {
	engine, err := render.NewEngine(nil, "")
	require.NoError(t, err)
	for _, name := range []string{"   ", "<br>"} {
		event := withFields(t, func(m map[string]any) { m["recipient_name"] = name })

		htmlStore := &fakeStore{}
		resp, err := newPipeline(htmlStore, nil).Handle(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode, "html %q", name)

		pdfStore := &fakeStore{}
		p := New(engine, pdfStore, nil,
			WithConverter(pdfconv.PDF{}),
			WithClock(func() time.Time { return fixedNow }),
			WithRand(func(int) int { return 41 }))
		resp, err = p.Handle(context.Background(), event)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode, "pdf %q: %s", name, resp.Body)
		require.Len(t, pdfStore.uploads, 1)
		assert.True(t, strings.HasPrefix(string(pdfStore.uploads[0].body), "%PDF-"))
	}
}

func TestHandleEnvelopes(t *testing.T) {
	quoted, err := json.Marshal(janeDoe)
	require.NoError(t, err)

	cases := map[string]string{
		"top level":   janeDoe,
		"string body": `{"httpMethod":"POST","body":` + string(quoted) + `}`,
		"object body": `{"body":` + janeDoe + `}`,
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{}
			resp, err := newPipeline(store, nil).Handle(context.Background(), json.RawMessage(event))
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode, resp.Body)
			assert.Len(t, store.uploads, 1)
		})
	}
}

func TestHandleInvalidJSON(t *testing.T) {
	for _, event := range []string{`not json`, `{"body":"{broken"}`, `{"body":"[1,2]"}`, `{"body":""}`} {
		store := &fakeStore{}
		resp, err := newPipeline(store, nil).Handle(context.Background(), json.RawMessage(event))
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode, event)
		assert.Equal(t, "invalid json", decode(t, resp)["error"])
		assert.Empty(t, store.uploads)
	}
}

func withFields(t *testing.T, mutate func(m map[string]any)) json.RawMessage {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(janeDoe), &m))
	mutate(m)
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func TestHandleMissingSingleField(t *testing.T) {
	for _, f := range models.RequiredFields {
		t.Run(f, func(t *testing.T) {
			store := &fakeStore{}
			event := withFields(t, func(m map[string]any) { delete(m, f) })
			resp, err := newPipeline(store, nil).Handle(context.Background(), event)
			require.NoError(t, err)
			assert.Equal(t, 400, resp.StatusCode)
			body := decode(t, resp)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "Missing required fields: "+f, body["error"])
			assert.Empty(t, store.uploads)
		})
	}
}

func TestHandleMissingSeveralFields(t *testing.T) {
	event := withFields(t, func(m map[string]any) {
		delete(m, "user_id")
		m["course_title"] = ""
		m["tier_level"] = 0
		m["completion_date"] = "not-a-date"
	})
	resp, err := newPipeline(&fakeStore{}, nil).Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "Missing required fields: course_title, tier_level, user_id", decode(t, resp)["error"])
}

func TestHandleBadDate(t *testing.T) {
	for _, d := range []string{"03/15/2024", "2024-13-01", "yesterday"} {
		store := &fakeStore{}
		event := withFields(t, func(m map[string]any) { m["completion_date"] = d })
		resp, err := newPipeline(store, nil).Handle(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
		assert.Equal(t, "completion_date must be in YYYY-MM-DD format", decode(t, resp)["error"])
		assert.Empty(t, store.uploads)
	}
}

func TestHandleUnmappedTierSucceeds(t *testing.T) {
	store := &fakeStore{}
	event := withFields(t, func(m map[string]any) { m["tier_level"] = 99 })
	resp, err := newPipeline(store, nil).Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	html := string(store.uploads[0].body)
	assert.Contains(t, html, `<div class="tier-badge">Unknown Program</div>`)
	assert.Contains(t, html, `<meta name="theme-color" content="#4A90E2">`)
}

func TestHandleTrimsNameAndTitle(t *testing.T) {
	store := &fakeStore{}
	event := withFields(t, func(m map[string]any) {
		m["recipient_name"] = "  Jane Doe  "
		m["course_title"] = " Advanced Widgets\n"
	})
	resp, err := newPipeline(store, nil).Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	html := string(store.uploads[0].body)
	assert.Contains(t, html, `<div class="recipient-name">Jane Doe</div>`)
	assert.Contains(t, html, `<div class="course-title">Advanced Widgets</div>`)
}

func TestHandleStorageFailureIsGeneric(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	store := &fakeStore{err: &storage.Error{Kind: storage.ErrCredentialsMissing}}

	resp, err := newPipeline(store, zap.New(core)).Handle(context.Background(), json.RawMessage(janeDoe))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, "Internal server error occurred while generating certificate", decode(t, resp)["error"])
	assert.NotContains(t, resp.Body, "credentials")

	failures := logs.FilterMessage("certificate generation failed").All()
	require.Len(t, failures, 1)
	errField := failures[0].ContextMap()["error"]
	assert.Contains(t, errField, "AWS credentials not configured")
	assert.Equal(t, "CERT-2024-0042", failures[0].ContextMap()["certificate_number"])
}

func TestHandleRenderFailureIsGeneric(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	store := &fakeStore{}
	p := New(failingRenderer{}, store, zap.New(core))

	resp, err := p.Handle(context.Background(), json.RawMessage(janeDoe))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.NotContains(t, resp.Body, "exploded")
	assert.Empty(t, store.uploads)
	assert.Equal(t, 1, logs.FilterMessage("certificate generation failed").Len())
}

func TestHandleRecoversPanics(t *testing.T) {
	p := New(panickingRenderer{}, &fakeStore{}, nil)
	resp, err := p.Handle(context.Background(), json.RawMessage(janeDoe))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, api.MsgInternalError, decode(t, resp)["error"])
}

func TestRenderIsIdempotent(t *testing.T) {
	p := newPipeline(nil, nil)
	body, err := Unwrap([]byte(janeDoe))
	require.NoError(t, err)
	rec, err := p.Prepare(body)
	require.NoError(t, err)

	a, err := p.Document(rec)
	require.NoError(t, err)
	b, err := p.Document(rec)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateWithoutStore(t *testing.T) {
	p := newPipeline(nil, nil)
	body, err := Unwrap([]byte(janeDoe))
	require.NoError(t, err)
	rec, err := p.Prepare(body)
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), rec)
	assert.Error(t, err)
}

// Certificate numbers are not deduplicated: two requests drawing the same
// number for the same user and course write to the same key.
func TestCertificateNumberCollisionOverwrites(t *testing.T) {
	store := &fakeStore{}
	p := newPipeline(store, nil)
	for i := 0; i < 2; i++ {
		resp, err := p.Handle(context.Background(), json.RawMessage(janeDoe))
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
	}
	require.Len(t, store.uploads, 2)
	assert.Equal(t, store.uploads[0].key, store.uploads[1].key)
}
