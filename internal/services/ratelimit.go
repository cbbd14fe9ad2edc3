package services

import (
	"context"

	"github.com/MrWong99/reelforge/pkg/provider/image"
	"github.com/MrWong99/reelforge/pkg/provider/speech"
	"github.com/MrWong99/reelforge/pkg/provider/text"
	"github.com/MrWong99/reelforge/pkg/provider/video"
	"golang.org/x/time/rate"
)

// Rate-limit decorators wrap provider handles when the config entry sets
// rate_limit. Only the expensive generation calls wait on the limiter;
// status polls and cost estimates pass through. Each decorator forwards
// Close to the wrapped handle so [Manager.Close] still reaches it.

func newLimiter(rps float64) *rate.Limiter {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func limitText(p text.Provider, rps float64) text.Provider {
	if rps <= 0 {
		return p
	}
	return &limitedText{p: p, lim: newLimiter(rps)}
}

type limitedText struct {
	p   text.Provider
	lim *rate.Limiter
}

func (l *limitedText) Generate(ctx context.Context, req text.Request) (*text.Response, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.p.Generate(ctx, req)
}

func (l *limitedText) EstimateCost(req text.Request) float64 {
	return l.p.EstimateCost(req)
}

func (l *limitedText) Close() error {
	return closeHandle(l.p)
}

func limitImage(p image.Provider, rps float64) image.Provider {
	if rps <= 0 {
		return p
	}
	return &limitedImage{p: p, lim: newLimiter(rps)}
}

type limitedImage struct {
	p   image.Provider
	lim *rate.Limiter
}

func (l *limitedImage) Generate(ctx context.Context, req image.Request) (*image.Response, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.p.Generate(ctx, req)
}

func (l *limitedImage) EstimateCost(req image.Request) float64 {
	return l.p.EstimateCost(req)
}

func (l *limitedImage) Close() error {
	return closeHandle(l.p)
}

func limitSpeech(p speech.Provider, rps float64) speech.Provider {
	if rps <= 0 {
		return p
	}
	return &limitedSpeech{p: p, lim: newLimiter(rps)}
}

type limitedSpeech struct {
	p   speech.Provider
	lim *rate.Limiter
}

func (l *limitedSpeech) Synthesize(ctx context.Context, req speech.Request) (*speech.Response, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.p.Synthesize(ctx, req)
}

func (l *limitedSpeech) Voices(ctx context.Context) ([]speech.Voice, error) {
	return l.p.Voices(ctx)
}

func (l *limitedSpeech) EstimateCost(req speech.Request) float64 {
	return l.p.EstimateCost(req)
}

func (l *limitedSpeech) Close() error {
	return closeHandle(l.p)
}

func limitVideo(p video.Provider, rps float64) video.Provider {
	if rps <= 0 {
		return p
	}
	return &limitedVideo{p: p, lim: newLimiter(rps)}
}

type limitedVideo struct {
	p   video.Provider
	lim *rate.Limiter
}

func (l *limitedVideo) Generate(ctx context.Context, req video.Request) (*video.Job, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.p.Generate(ctx, req)
}

func (l *limitedVideo) CheckStatus(ctx context.Context, jobID string) (*video.Job, error) {
	return l.p.CheckStatus(ctx, jobID)
}

func (l *limitedVideo) Capabilities() video.Capabilities {
	return l.p.Capabilities()
}

func (l *limitedVideo) EstimateCost(req video.Request) float64 {
	return l.p.EstimateCost(req)
}

func (l *limitedVideo) Close() error {
	return closeHandle(l.p)
}
