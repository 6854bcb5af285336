// Package pipeline runs the card generation flow: validate, admit
// against the company quota, assemble the prompt, enhance it, generate
// the image with retries, store the artifact, and record the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/imagestore"
	"github.com/greetforge/greetforge/internal/models"
	"github.com/greetforge/greetforge/internal/prompt"
	"github.com/greetforge/greetforge/internal/quota"
	"github.com/greetforge/greetforge/internal/store"
	"github.com/greetforge/greetforge/internal/upstream"
)

// retryDelays is the backoff schedule between image generation attempts.
var retryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// maxAttempts is how many times the image call is tried per request.
const maxAttempts = 3

// Enhancer rewrites a raw prompt into a richer one.
type Enhancer interface {
	Enhance(ctx context.Context, prompt string) (string, error)
}

// Generator produces an image for a prompt.
type Generator interface {
	Generate(ctx context.Context, req upstream.ImageRequest) (upstream.ImageResult, error)
}

// QuotaError is returned when a company has exhausted its generation
// quota.
type QuotaError struct {
	Company string
	Used    int64
	Limit   int
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("Generation limit reached. %s has used %d/%d generations.", e.Company, e.Used, e.Limit)
}

// Request carries one card generation request through the pipeline.
type Request struct {
	Mode              string
	Client            string
	UserName          string
	UserEmail         string
	EmailOptIn        bool
	Staff             string
	CardStyle         string
	PersonDescription string
	Accessory         string
	Pose              string
	Background        string
	MagicalEffect     string
	ImagePath         string
	SelectedHoliday   string
	GreetingText      string
}

// Result is a completed generation.
type Result struct {
	URL            string
	ShareID        string
	EnhancedPrompt string
}

// Pipeline wires the generation flow together.
type Pipeline struct {
	store     *store.Store
	quotas    *quota.Store
	enhancer  Enhancer
	generator Generator
	images    *imagestore.Storage
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a Pipeline.
func New(st *store.Store, quotas *quota.Store, enhancer Enhancer, generator Generator, images *imagestore.Storage) *Pipeline {
	return &Pipeline{
		store:     st,
		quotas:    quotas,
		enhancer:  enhancer,
		generator: generator,
		images:    images,
		sleep:     sleepContext,
	}
}

// Generate runs one request through the pipeline. Failures after
// admission return the quota slot; a recording failure after the
// artifact is stored is logged and swallowed so the user still gets
// their card.
func (p *Pipeline) Generate(ctx context.Context, req Request) (Result, error) {
	promptReq := prompt.Request{
		Mode:              req.Mode,
		Client:            req.Client,
		Staff:             req.Staff,
		CardStyle:         req.CardStyle,
		PersonDescription: req.PersonDescription,
		Accessory:         req.Accessory,
		Pose:              req.Pose,
		Background:        req.Background,
		MagicalEffect:     req.MagicalEffect,
		ImagePath:         req.ImagePath,
		SelectedHoliday:   req.SelectedHoliday,
		GreetingText:      req.GreetingText,
	}
	if err := promptReq.Validate(); err != nil {
		return Result{}, err
	}

	company := store.NormalizeCompany(req.Client)
	admission, errReserve := p.quotas.Reserve(ctx, company)
	if errReserve != nil {
		return Result{}, errReserve
	}
	if !admission.Allowed {
		return Result{}, &QuotaError{Company: req.Client, Used: admission.Used, Limit: admission.Limit}
	}

	// The slot is held from here on; give it back on any failure before
	// the artifact is stored.
	result, err := p.run(ctx, req, promptReq, company)
	if err != nil {
		if errRelease := p.quotas.Release(ctx, company); errRelease != nil {
			log.WithError(errRelease).WithField("company", company).Warn("failed to release quota slot")
		}
		return Result{}, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, promptReq prompt.Request, company string) (Result, error) {
	customTemplate := ""
	if template, errTemplate := p.store.ActiveTemplate(ctx, company); errTemplate == nil {
		customTemplate = template.Template
	} else if !errors.Is(errTemplate, store.ErrNotFound) {
		log.WithError(errTemplate).WithField("company", company).Warn("custom prompt lookup failed, using default")
	}

	basePrompt, errBuild := prompt.Build(promptReq, customTemplate)
	if errBuild != nil {
		return Result{}, errBuild
	}

	enhanced, errEnhance := p.enhancer.Enhance(ctx, basePrompt)
	if errEnhance != nil {
		return Result{}, errEnhance
	}

	imageReq := upstream.ImageRequest{Prompt: enhanced}
	if req.Mode == models.ModeUpload && req.ImagePath != "" {
		data, mimeType, errRead := p.images.ReadUpload(req.ImagePath)
		if errRead != nil {
			return Result{}, errRead
		}
		imageReq.ImageData = data
		imageReq.MimeType = mimeType
	}

	image, errGenerate := p.generateWithRetry(ctx, imageReq, company)
	if errGenerate != nil {
		return Result{}, errGenerate
	}

	artifact, errSave := p.images.SaveGenerated(company, image.Data)
	if errSave != nil {
		return Result{}, errSave
	}

	// The card exists and the user gets it either way; a recording
	// failure must not turn a delivered card into an error.
	p.record(ctx, req, company, artifact.URL, enhanced)

	return Result{URL: artifact.URL, ShareID: artifact.ShareID, EnhancedPrompt: enhanced}, nil
}

// generateWithRetry tries the image call up to maxAttempts times,
// backing off between attempts. Only rate limits and transient provider
// failures are retried.
func (p *Pipeline) generateWithRetry(ctx context.Context, req upstream.ImageRequest, company string) (upstream.ImageResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := p.generator.Generate(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !upstream.IsRetryable(err) || attempt == maxAttempts {
			break
		}
		delay := retryDelays[attempt-1]
		log.WithError(err).WithFields(log.Fields{
			"company": company,
			"attempt": attempt,
			"delay":   delay,
		}).Warn("image generation failed, retrying")
		if errSleep := p.sleep(ctx, delay); errSleep != nil {
			return upstream.ImageResult{}, errSleep
		}
	}
	return upstream.ImageResult{}, lastErr
}

// record persists the user and generation rows. Errors are logged and
// swallowed.
func (p *Pipeline) record(ctx context.Context, req Request, company, imageURL, enhanced string) {
	user, errUser := p.store.FindOrCreateUser(ctx, req.UserName, req.UserEmail, company)
	if errUser != nil {
		log.WithError(errUser).WithField("company", company).Warn("failed to record user")
		return
	}
	details := models.UserDetails{
		Name:            req.UserName,
		Email:           req.UserEmail,
		SelectedHoliday: req.SelectedHoliday,
		EmailOptIn:      req.EmailOptIn,
		GreetingText:    req.GreetingText,
	}
	if _, errGen := p.store.AppendGeneration(ctx, user.ID, company, req.Mode, imageURL, enhanced, details); errGen != nil {
		log.WithError(errGen).WithField("company", company).Warn("failed to record generation")
	}
}

// sleepContext waits for the duration or until the context ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
