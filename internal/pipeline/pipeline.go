// Package pipeline validates a certificate request, renders it, stores the
// artifact and packages the signed link into a response envelope.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/kylejryan/course-certificate-generator/internal/api"
	"github.com/kylejryan/course-certificate-generator/internal/httpx"
	"github.com/kylejryan/course-certificate-generator/internal/models"
	"github.com/kylejryan/course-certificate-generator/internal/pdfconv"
	"github.com/kylejryan/course-certificate-generator/internal/render"
	"github.com/kylejryan/course-certificate-generator/internal/storage"
	"github.com/kylejryan/course-certificate-generator/internal/validate"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// ErrInvalidEnvelope is returned when the inbound event or its body is not a JSON object.
var ErrInvalidEnvelope = errors.New("invalid json")

// Uploader stores a rendered certificate and returns a signed link to it.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Pipeline owns the collaborators of one certificate generation.
type Pipeline struct {
	renderer  render.Renderer
	converter pdfconv.Converter
	store     Uploader
	log       *zap.Logger
	now       func() time.Time
	intn      models.IntN
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithConverter converts rendered markup before upload (the PDF path).
func WithConverter(c pdfconv.Converter) Option { return func(p *Pipeline) { p.converter = c } }

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithRand overrides the certificate number random source.
func WithRand(intn models.IntN) Option { return func(p *Pipeline) { p.intn = intn } }

// New builds a Pipeline. store may be nil when only Document is used.
func New(r render.Renderer, store Uploader, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		renderer: r,
		store:    store,
		log:      log,
		now:      time.Now,
		intn:     rand.Intn,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Handle is the Lambda entry point. Validation failures produce a 400 with
// the specific cause; every later failure produces a generic 500 and is logged.
func (p *Pipeline) Handle(ctx context.Context, event json.RawMessage) (resp events.APIGatewayProxyResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("certificate generation panicked", zap.Any("panic", r), zap.Stack("stack"))
			resp = httpx.Error(http.StatusInternalServerError, api.MsgInternalError)
		}
	}()

	body, err := Unwrap(event)
	if err != nil {
		p.log.Warn("rejecting request", zap.Error(err))
		return httpx.Error(http.StatusBadRequest, api.MsgInvalidJSON), nil
	}

	rec, err := p.Prepare(body)
	if err != nil {
		p.log.Warn("rejecting request", zap.Error(err))
		return httpx.Error(http.StatusBadRequest, err.Error()), nil
	}
	log := p.log.With(
		zap.String("certificate_number", rec.CertificateNumber),
		zap.String("user_id", rec.UserID),
		zap.String("course_id", rec.CourseID),
	)
	log.Info("generating certificate")

	url, err := p.Generate(ctx, rec)
	if err != nil {
		log.Error("certificate generation failed", zap.Error(err))
		return httpx.Error(http.StatusInternalServerError, api.MsgInternalError), nil
	}
	log.Info("certificate generated")

	out := api.GenerateResponse{
		Success:           true,
		CertificateURL:    url,
		CertificateNumber: rec.CertificateNumber,
		Message:           "Certificate generated successfully for " + models.RequestFromBody(body).RecipientName,
	}
	if p.converter == nil {
		out.Note = api.NoteHTMLOnlyBuild
	}
	return httpx.JSON(http.StatusOK, out), nil
}

// Unwrap extracts the request body from an invocation event. A string "body"
// is decoded as JSON, an object "body" is used as is, and anything else means
// the event itself is the body. Numbers are kept as json.Number.
func Unwrap(event []byte) (map[string]any, error) {
	env, err := decodeObject(event)
	if err != nil {
		return nil, err
	}
	switch b := env["body"].(type) {
	case string:
		return decodeObject([]byte(b))
	case map[string]any:
		return b, nil
	default:
		return env, nil
	}
}

func decodeObject(data []byte) (map[string]any, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: body is not an object", ErrInvalidEnvelope)
	}
	return m, nil
}

// Prepare validates body and derives the certificate record. The returned
// errors are validate.ErrMissingFields or validate.ErrInvalidDate.
func (p *Pipeline) Prepare(body map[string]any) (models.CertificateRecord, error) {
	if err := validate.RequiredFields(body); err != nil {
		return models.CertificateRecord{}, err
	}
	req := models.RequestFromBody(body)
	number := models.CertificateNumber(p.now(), p.intn)
	completed, err := validate.CompletionDate(req.CompletionDate)
	if err != nil {
		return models.CertificateRecord{}, err
	}
	return models.NewRecord(req, number, completed, p.now()), nil
}

// Document is a rendered, possibly converted, certificate.
type Document struct {
	Body        []byte
	ContentType string
	Ext         string
}

// Document renders rec and converts it when a converter is configured.
func (p *Pipeline) Document(rec models.CertificateRecord) (Document, error) {
	body, err := p.renderer.Render(rec.Fields())
	if err != nil {
		return Document{}, err
	}
	if p.converter == nil {
		return Document{Body: body, ContentType: storage.ContentTypeHTML, Ext: storage.ExtHTML}, nil
	}
	out, err := p.converter.Convert(body)
	if err != nil {
		return Document{}, err
	}
	return Document{Body: out, ContentType: p.converter.ContentType(), Ext: p.converter.Extension()}, nil
}

// Generate renders rec, uploads it under its derived key and returns the signed link.
func (p *Pipeline) Generate(ctx context.Context, rec models.CertificateRecord) (string, error) {
	if p.store == nil {
		return "", errors.New("pipeline has no store")
	}
	doc, err := p.Document(rec)
	if err != nil {
		return "", err
	}
	key := storage.BuildKey(rec.UserID, rec.CourseID, rec.CertificateNumber, doc.Ext)
	url, err := p.store.Upload(ctx, key, doc.Body, doc.ContentType)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return url, nil
}
