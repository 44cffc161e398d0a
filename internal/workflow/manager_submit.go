package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bobbin/internal/dedup"
	"bobbin/internal/export"
	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/source"
)

// Submit classifies locator, drops candidates already covered by the
// registry, the exclusions or the cutoff, and enqueues the rest. A single
// Audio or Video source that is already active fails with
// *queue.DuplicateSourceError; duplicate playlist or feed children become
// Skip outcomes instead. With Hints.Preprocess set, the metadata document of
// each added job is written too.
func (m *Manager) Submit(ctx context.Context, locator string, opts SubmitOptions) (SubmitReport, error) {
	logger := logging.WithContext(ctx, m.logger)
	src, included, report, err := m.candidates(ctx, locator, opts)
	if err != nil {
		return report, err
	}

	for _, candidate := range included {
		item, err := m.enqueue(ctx, candidate, opts.Diarize)
		if err != nil {
			var dup *queue.DuplicateSourceError
			if errors.As(err, &dup) && src.IsContainer() {
				report.Skipped = append(report.Skipped, services.Skip(candidate.Locator, candidate.Title, "already queued"))
				logger.Info("candidate already queued",
					logging.String(logging.FieldEventType, "submit_duplicate"),
					logging.String(logging.FieldLocator, candidate.Locator),
					logging.String("title", candidate.Title),
				)
				continue
			}
			return report, err
		}
		report.Added = append(report.Added, item.ID)
		if opts.Hints.Preprocess {
			path, err := export.WriteMetadata(m.cfg.Paths.OutputDir, candidate)
			if err != nil {
				return report, err
			}
			report.Metadata = append(report.Metadata, path)
		}
	}

	logger.Info("submission processed",
		logging.String(logging.FieldEventType, "submit_complete"),
		logging.String(logging.FieldLocator, locator),
		logging.Int("added", len(report.Added)),
		logging.Int("excluded", report.Excluded),
		logging.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// Preprocess classifies and filters like Submit but only writes the metadata
// document of every included candidate; nothing is queued.
func (m *Manager) Preprocess(ctx context.Context, locator string, opts SubmitOptions) (SubmitReport, error) {
	opts.Hints.Preprocess = true
	_, included, report, err := m.candidates(ctx, locator, opts)
	if err != nil {
		return report, err
	}
	for _, candidate := range included {
		path, err := export.WriteMetadata(m.cfg.Paths.OutputDir, candidate)
		if err != nil {
			return report, err
		}
		report.Metadata = append(report.Metadata, path)
	}
	logging.WithContext(ctx, m.logger).Info("preprocess complete",
		logging.String(logging.FieldEventType, "preprocess_complete"),
		logging.String(logging.FieldLocator, locator),
		logging.Int("written", len(report.Metadata)),
		logging.Int("excluded", report.Excluded),
	)
	return report, nil
}

func (m *Manager) candidates(ctx context.Context, locator string, opts SubmitOptions) (source.Source, []source.Source, SubmitReport, error) {
	var report SubmitReport
	if m.classifier == nil {
		return source.Source{}, nil, report, services.Wrap(services.ErrConfiguration, "submit", "classify", "no classifier configured", nil)
	}
	src, err := m.classifier.Classify(ctx, locator, opts.Hints)
	if err != nil {
		return src, nil, report, err
	}
	for _, outcome := range src.Outcomes {
		if outcome.Kind != services.OutcomeOK {
			report.Skipped = append(report.Skipped, outcome)
		}
	}

	existing, err := m.index.Get(ctx)
	if err != nil {
		return src, nil, report, services.Wrap(services.ErrTransient, "submit", "load existing media",
			fmt.Sprintf("registry lookup for %s failed", locator), err)
	}
	included, excluded := dedup.Filter(src.Candidates(), existing, dedup.NewSet(opts.Exclusions...), opts.Cutoff)
	report.Excluded = excluded
	return src, included, report, nil
}

func (m *Manager) enqueue(ctx context.Context, candidate source.Source, diarize bool) (*queue.Item, error) {
	payload, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("encode source %s: %w", candidate.Label(), err)
	}
	return m.store.Enqueue(ctx, queue.NewItem{
		SourceKind:     string(candidate.Kind),
		SourceJSON:     string(payload),
		CollectionPath: candidate.CollectionPath,
		Title:          candidate.Label(),
		Media:          candidate.Media(),
		Diarize:        diarize,
	})
}
