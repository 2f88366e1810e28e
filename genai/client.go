package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	apperr "clipsight/errors"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// File lifecycle states reported by the remote asset status endpoint.
const (
	StateProcessing = "PROCESSING"
	StateActive     = "ACTIVE"
	StateFailed     = "FAILED"
)

type Config struct {
	BaseURL string
	Model   string

	PollInitialDelay time.Duration
	PollInterval     time.Duration
	PollMaxAttempts  int

	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// Client talks to a generative language endpoint: staged file uploads,
// asset state polling, and schema-constrained content generation.
type Client struct {
	baseURL string
	model   string

	pollInitialDelay time.Duration
	pollInterval     time.Duration
	pollMaxAttempts  int

	http   *http.Client
	logger *logrus.Logger
}

func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		model:            cfg.Model,
		pollInitialDelay: cfg.PollInitialDelay,
		pollInterval:     cfg.PollInterval,
		pollMaxAttempts:  cfg.PollMaxAttempts,
		http:             cfg.HTTPClient,
		logger:           cfg.Logger,
	}

	if c.baseURL == "" {
		c.baseURL = "https://generativelanguage.googleapis.com"
	}
	if c.model == "" {
		c.model = "gemini-2.0-flash"
	}
	if c.pollInitialDelay <= 0 {
		c.pollInitialDelay = 2 * time.Second
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 3 * time.Second
	}
	if c.pollMaxAttempts <= 0 {
		c.pollMaxAttempts = 60
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 5 * time.Minute}
	}
	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}

	return c
}

// FileHandle identifies a staged asset and its lifecycle state.
type FileHandle struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
}

// Payload is the closed union of the two transport encodings. Exactly one
// variant is active; construct with InlinePayload or FilePayload.
type Payload struct {
	kind     payloadKind
	mimeType string
	data     []byte
	uri      string
}

type payloadKind int

const (
	payloadInline payloadKind = iota + 1
	payloadFile
)

// InlinePayload embeds the full video as base64 within the request body.
func InlinePayload(mimeType string, data []byte) Payload {
	return Payload{kind: payloadInline, mimeType: mimeType, data: data}
}

// FilePayload references a staged asset by its remote URI.
func FilePayload(mimeType, uri string) Payload {
	return Payload{kind: payloadFile, mimeType: mimeType, uri: uri}
}

func (p Payload) IsInline() bool   { return p.kind == payloadInline }
func (p Payload) MimeType() string { return p.mimeType }
func (p Payload) URI() string      { return p.uri }

func (p Payload) part() (part, error) {
	switch p.kind {
	case payloadInline:
		return part{InlineData: &blob{
			MimeType: p.mimeType,
			Data:     base64.StdEncoding.EncodeToString(p.data),
		}}, nil
	case payloadFile:
		return part{FileData: &fileData{
			MimeType: p.mimeType,
			FileURI:  p.uri,
		}}, nil
	default:
		return part{}, fmt.Errorf("no transport payload constructed")
	}
}

// Wire types for the generateContent call.
type part struct {
	Text       string    `json:"text,omitempty"`
	InlineData *blob     `json:"inlineData,omitempty"`
	FileData   *fileData `json:"fileData,omitempty"`
}

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type fileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

type generateContentRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Upload stages the video on the remote file endpoint. The returned handle
// is usually still PROCESSING; drive it to readiness with AwaitActive.
func (c *Client) Upload(ctx context.Context, apiKey string, data []byte, mimeType, displayName string) (*FileHandle, error) {
	const op = "genai.Upload"

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return nil, apperr.Internal(op, errors.Wrap(err, "create metadata part"), "Failed to build upload request")
	}
	meta := map[string]any{"file": map[string]any{"display_name": displayName}}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, apperr.Internal(op, errors.Wrap(err, "encode metadata"), "Failed to build upload request")
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mimeType)
	mediaPart, err := mw.CreatePart(mediaHeader)
	if err != nil {
		return nil, apperr.Internal(op, errors.Wrap(err, "create media part"), "Failed to build upload request")
	}
	if _, err := mediaPart.Write(data); err != nil {
		return nil, apperr.Internal(op, errors.Wrap(err, "write media"), "Failed to build upload request")
	}
	if err := mw.Close(); err != nil {
		return nil, apperr.Internal(op, errors.Wrap(err, "close multipart body"), "Failed to build upload request")
	}

	url := c.baseURL + "/upload/v1beta/files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, apperr.Internal(op, err, "Failed to build upload request")
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())
	req.Header.Set("X-Goog-Upload-Protocol", "multipart")
	c.authorize(req, apiKey)

	c.logger.WithFields(logrus.Fields{
		"bytes":     len(data),
		"mime_type": mimeType,
	}).Debug("Uploading video to file endpoint")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Transport(op, errors.Wrap(err, "upload request"), "Failed to reach the upload endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(op, resp)
	}

	var uploaded struct {
		File FileHandle `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, apperr.Transport(op, errors.Wrap(err, "decode upload response"), "Upload endpoint returned an unreadable response")
	}
	if uploaded.File.Name == "" {
		return nil, apperr.Transport(op, nil, "Upload endpoint returned no file handle")
	}

	return &uploaded.File, nil
}

// GetFile fetches the current lifecycle state of a staged asset.
func (c *Client) GetFile(ctx context.Context, apiKey, name string) (*FileHandle, error) {
	const op = "genai.GetFile"

	url := c.baseURL + "/v1beta/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Internal(op, err, "Failed to build status request")
	}
	c.authorize(req, apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Transport(op, errors.Wrap(err, "status request"), "Failed to reach the asset status endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(op, resp)
	}

	var handle FileHandle
	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		return nil, apperr.Transport(op, errors.Wrap(err, "decode status response"), "Asset status endpoint returned an unreadable response")
	}

	return &handle, nil
}

// AwaitActive polls the asset state until it becomes ACTIVE, reaches a
// failure state, or the attempt bound is exhausted. Polling is sequential:
// a fixed initial delay, then one fetch per fixed inter-poll delay.
func (c *Client) AwaitActive(ctx context.Context, apiKey string, handle *FileHandle) (*FileHandle, error) {
	const op = "genai.AwaitActive"

	if handle.State == StateActive {
		return handle, nil
	}

	if err := sleepCtx(ctx, c.pollInitialDelay); err != nil {
		return nil, apperr.Processing(op, err, "Analysis cancelled while video was processing")
	}

	for attempt := 0; attempt < c.pollMaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.pollInterval); err != nil {
				return nil, apperr.Processing(op, err, "Analysis cancelled while video was processing")
			}
		}

		current, err := c.GetFile(ctx, apiKey, handle.Name)
		if err != nil {
			return nil, err
		}

		switch current.State {
		case StateActive:
			return current, nil
		case StateProcessing:
			c.logger.WithFields(logrus.Fields{
				"file":    handle.Name,
				"attempt": attempt + 1,
			}).Debug("Video still processing")
		default:
			return nil, apperr.Processing(op, nil, fmt.Sprintf(
				"Video processing ended in state %s", current.State,
			))
		}
	}

	return nil, apperr.Processing(op, nil, fmt.Sprintf(
		"Video processing timed out after %d polls", c.pollMaxAttempts,
	))
}

// GenerateAnalysis issues the inference call: the analyst persona, the
// transport payload alongside the fixed instruction text, and the strict
// response schema. Returns the raw model text; an empty string means the
// model produced no text part.
func (c *Client) GenerateAnalysis(ctx context.Context, apiKey string, payload Payload) (string, error) {
	const op = "genai.GenerateAnalysis"

	payloadPart, err := payload.part()
	if err != nil {
		return "", apperr.Internal(op, err, "No video payload to analyze")
	}

	reqBody := generateContentRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: userInstruction}, payloadPart},
		}},
		GenerationConfig: generationConfig{
			Temperature:      generationTemperature,
			ResponseMimeType: "application/json",
			ResponseSchema:   analysisSchema,
		},
	}

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return "", apperr.Internal(op, err, "Failed to build inference request")
	}

	url := c.baseURL + "/v1beta/models/" + c.model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return "", apperr.Internal(op, err, "Failed to build inference request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, apiKey)

	c.logger.WithFields(logrus.Fields{
		"model":  c.model,
		"inline": payload.IsInline(),
	}).Debug("Requesting video analysis")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Transport(op, errors.Wrap(err, "inference request"), "Failed to reach the inference endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.decodeError(op, resp)
	}

	var generated generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return "", apperr.Transport(op, errors.Wrap(err, "decode inference response"), "Inference endpoint returned an unreadable response")
	}

	var text strings.Builder
	for _, candidate := range generated.Candidates {
		for _, p := range candidate.Content.Parts {
			text.WriteString(p.Text)
		}
		break
	}

	return text.String(), nil
}

// authorize attaches the credential as a header so it never appears in
// URLs, logs, or error messages.
func (c *Client) authorize(req *http.Request, apiKey string) {
	req.Header.Set("x-goog-api-key", apiKey)
}

func (c *Client) decodeError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var apiErr struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	message := http.StatusText(resp.StatusCode)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return apperr.Auth(op, nil, "API key rejected: "+message)
	case http.StatusBadRequest:
		// The endpoint reports an invalid key as a 400 rather than a 401.
		if strings.Contains(message, "API key") {
			return apperr.Auth(op, nil, "API key rejected: "+message)
		}
		return apperr.Transport(op, nil, message)
	default:
		return apperr.Transport(op, nil, message)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
