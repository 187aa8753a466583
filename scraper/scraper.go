package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-wines/config"
	"github.com/aluiziolira/go-scrape-wines/models"
	"github.com/aluiziolira/go-scrape-wines/parser"
	"github.com/google/uuid"
)

// Scraper drives the page loop: it fetches pages in order, collects their
// items and decides after each page whether to stop.
type Scraper struct {
	cfg     *config.Config
	fetcher PageFetcher
	sleep   Sleeper
	delay   func() time.Duration
	Metrics *Metrics
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithSleeper replaces the blocking sleep used between pages.
func WithSleeper(s Sleeper) Option {
	return func(sc *Scraper) {
		sc.sleep = s
	}
}

// WithMetrics shares a metrics bundle with the fetcher.
func WithMetrics(m *Metrics) Option {
	return func(sc *Scraper) {
		sc.Metrics = m
	}
}

// NewScraper builds a scraper over fetcher.
func NewScraper(cfg *config.Config, fetcher PageFetcher, opts ...Option) (*Scraper, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		sleep:   sleepContext,
	}
	s.delay = func() time.Duration {
		return randomDelay(s.cfg.DelayMin, s.cfg.DelayMax)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Metrics == nil {
		s.Metrics = NewMetrics()
	}
	return s, nil
}

// Run crawls from the start page until a stop condition holds. It never
// fails: whatever was collected before the stop is returned together with
// the reason.
func (s *Scraper) Run(ctx context.Context) *models.CrawlResult {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.CrawlResult{
		RunID:      uuid.NewString(),
		Items:      make([]models.RawItem, 0),
		StartTime:  time.Now(),
		StartPage:  s.cfg.StartPage,
		TotalPages: 1,
	}
	log := slog.With(slog.String("run_id", result.RunID))
	lastAllowed := s.cfg.LastPage()

	log.Info("starting crawl",
		slog.Int("start_page", s.cfg.StartPage),
		slog.Int("max_pages", s.cfg.MaxPages),
	)

	for page := s.cfg.StartPage; page <= lastAllowed; page++ {
		if err := ctx.Err(); err != nil {
			result.StopReason = models.StopCanceled
			result.Err = err
			break
		}

		result.LastPage = page
		result.RequestCount++
		fetched := s.fetcher.Fetch(ctx, page)
		if !fetched.OK() {
			result.StopReason = models.StopFetchFailed
			if fetched.Failure != nil {
				result.Err = fetched.Failure
			} else {
				result.Err = fmt.Errorf("page %d: empty fetch result", page)
			}
			if errors.Is(result.Err, context.Canceled) || ctx.Err() != nil {
				result.StopReason = models.StopCanceled
				log.Info("crawl canceled", slog.Int("page", page))
				break
			}
			log.Error("stopping crawl after fetch failure", slog.Int("page", page), slog.Any("error", result.Err))
			break
		}

		data, err := parser.ExtractPage(fetched.Response)
		if err != nil {
			result.StopReason = models.StopMalformed
			result.Err = fmt.Errorf("page %d: %w", page, err)
			s.Metrics.IncError("malformed_response")
			log.Error("error processing response structure", slog.Int("page", page), slog.Any("error", err))
			break
		}
		if data.ContainerMissing {
			log.Warn("search container missing or invalid", slog.Int("page", page))
		}

		result.TotalPages = parser.TotalPages(data.Info, page)
		log.Info("page processed",
			slog.Int("page", page),
			slog.Int("total_pages", result.TotalPages),
			slog.Int("items", len(data.Items)),
		)

		if len(data.Items) == 0 {
			result.StopReason = models.StopEmptyPage
			log.Info("no product items found, stopping", slog.Int("page", page))
			break
		}

		result.Items = append(result.Items, data.Items...)
		result.PageCount++
		s.Metrics.AddPage(len(data.Items))

		if reason := nextStep(page, result.TotalPages, lastAllowed); reason != models.StopNone {
			result.StopReason = reason
			log.Info("fetched the last page", slog.Int("page", page), slog.String("reason", reason.String()))
			break
		}

		d := s.delay()
		s.Metrics.ObserveDelay(d)
		log.Info("waiting before next page", slog.Duration("delay", d), slog.Int("next_page", page+1))
		if err := s.sleep(ctx, d); err != nil {
			result.StopReason = models.StopCanceled
			result.Err = err
			break
		}
	}

	result.EndTime = time.Now()
	log.Info("crawl finished",
		slog.Int("items", len(result.Items)),
		slog.Int("pages", result.PageCount),
		slog.String("reason", result.StopReason.String()),
	)
	return result
}

// nextStep decides whether the crawl ends after a page that returned items.
func nextStep(page, totalPages, lastAllowed int) models.StopReason {
	if page >= totalPages {
		return models.StopLastPage
	}
	if page >= lastAllowed {
		return models.StopMaxPages
	}
	return models.StopNone
}
