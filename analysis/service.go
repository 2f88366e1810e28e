package analysis

import (
	"context"
	"sync/atomic"

	"clipsight/config"
	"clipsight/errors"
	"clipsight/genai"
	"clipsight/models"
	"clipsight/validation"

	"github.com/sirupsen/logrus"
)

// InferenceClient is the remote endpoint surface the pipeline consumes.
type InferenceClient interface {
	Upload(ctx context.Context, apiKey string, data []byte, mimeType, displayName string) (*genai.FileHandle, error)
	AwaitActive(ctx context.Context, apiKey string, handle *genai.FileHandle) (*genai.FileHandle, error)
	GenerateAnalysis(ctx context.Context, apiKey string, payload genai.Payload) (string, error)
}

// Service orchestrates the analysis pipeline: precondition checks,
// transport strategy selection, the staged-upload path, the inference
// call, and result parsing. One invocation runs at a time.
type Service struct {
	client    InferenceClient
	validator *validation.Validator
	registry  *Registry
	config    config.AnalysisConfig
	logger    *logrus.Logger
	busy      atomic.Bool
}

func NewService(
	client InferenceClient,
	validator *validation.Validator,
	cfg config.AnalysisConfig,
	logger *logrus.Logger,
) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		client:    client,
		validator: validator,
		registry:  NewRegistry(cfg.JobTTL),
		config:    cfg,
		logger:    logger,
	}
}

// Run executes one analysis invocation end to end. onProgress is invoked
// at each phase transition (staged path: uploading then analyzing;
// embedded path: analyzing only); it is fire-and-forget and control flow
// never depends on it. All precondition failures happen before any
// network activity.
func (s *Service) Run(
	ctx context.Context,
	video *models.SourceVideo,
	apiKey string,
	onProgress func(models.Phase),
) (*models.AnalysisResult, error) {
	const op = "AnalysisService.Run"

	if !s.busy.CompareAndSwap(false, true) {
		return nil, errors.Conflict(op, nil, "An analysis is already in progress")
	}
	defer s.busy.Store(false)

	return s.run(ctx, video, apiKey, onProgress)
}

// run is the gate-free pipeline body; the caller owns the busy slot.
func (s *Service) run(
	ctx context.Context,
	video *models.SourceVideo,
	apiKey string,
	onProgress func(models.Phase),
) (*models.AnalysisResult, error) {
	const op = "AnalysisService.Run"

	if onProgress == nil {
		onProgress = func(models.Phase) {}
	}

	if apiKey == "" {
		return nil, errors.Precondition(op, nil, "API key is required")
	}

	mimeType, err := s.validator.ValidateVideo(video.Filename, video.MimeType, video.Size)
	if err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(logrus.Fields{
		"filename": video.Filename,
		"size":     video.Size,
	})

	strategy := SelectStrategy(s.config, video.Size)
	logger.WithField("strategy", strategy.String()).Info("Starting analysis")

	var payload genai.Payload
	switch strategy {
	case StrategyStaged:
		onProgress(models.PhaseUploading)
		payload, err = s.stagedPayload(ctx, video, mimeType, apiKey, logger)
		if err != nil {
			return nil, err
		}
	default:
		payload = genai.InlinePayload(mimeType, video.Data)
	}

	onProgress(models.PhaseAnalyzing)

	raw, err := s.client.GenerateAnalysis(ctx, apiKey, payload)
	if err != nil {
		return nil, err
	}

	result, err := ParseResult(raw)
	if err != nil {
		return nil, err
	}

	logger.WithField("events", len(result.Events)).Info("Analysis complete")
	return result, nil
}

// stagedPayload drives the staged path: upload, poll to readiness, and
// reference by URI. A transport-level upload failure falls back once to
// the embedded encoding while the file is under the fallback ceiling;
// processing failures are fatal and never fall back.
func (s *Service) stagedPayload(
	ctx context.Context,
	video *models.SourceVideo,
	mimeType, apiKey string,
	logger *logrus.Entry,
) (genai.Payload, error) {
	handle, err := s.client.Upload(ctx, apiKey, video.Data, mimeType, video.Filename)
	if err != nil {
		if errors.IsKind(err, errors.KindTransport) && canFallbackInline(s.config, video.Size) {
			logger.WithError(err).Warn("Staged upload failed, falling back to embedded transport")
			return genai.InlinePayload(mimeType, video.Data), nil
		}
		return genai.Payload{}, err
	}

	ready, err := s.client.AwaitActive(ctx, apiKey, handle)
	if err != nil {
		return genai.Payload{}, err
	}

	logger.WithField("file", ready.Name).Info("Video staged and active")
	return genai.FilePayload(mimeType, ready.URI), nil
}

// StartJob validates the input synchronously, claims the single busy
// slot, registers a job, and runs the pipeline in the background with the
// job record as the progress projection. A second start while one is in
// flight is rejected here, before a job is ever created.
func (s *Service) StartJob(video *models.SourceVideo, apiKey string) (*models.Job, error) {
	const op = "AnalysisService.StartJob"

	if apiKey == "" {
		return nil, errors.Precondition(op, nil, "API key is required")
	}
	if _, err := s.validator.ValidateVideo(video.Filename, video.MimeType, video.Size); err != nil {
		return nil, err
	}

	if !s.busy.CompareAndSwap(false, true) {
		return nil, errors.Conflict(op, nil, "An analysis is already in progress")
	}

	job := s.registry.Create(video.Filename)
	go s.process(job.ID, video, apiKey)

	return s.registry.Get(job.ID)
}

// Job returns the current record for a background invocation.
func (s *Service) Job(id string) (*models.Job, error) {
	return s.registry.Get(id)
}

// process releases the busy slot claimed by StartJob when the invocation
// finishes.
func (s *Service) process(jobID string, video *models.SourceVideo, apiKey string) {
	defer s.busy.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ProcessTimeout)
	defer cancel()

	result, err := s.run(ctx, video, apiKey, func(phase models.Phase) {
		s.registry.SetPhase(jobID, phase)
	})
	if err != nil {
		s.logger.WithError(err).WithField("job_id", jobID).Error("Analysis failed")
		s.registry.Fail(jobID, err)
		return
	}

	s.registry.Complete(jobID, result)
}
