// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mliang5/novelrec/internal/catalog"
	"github.com/mliang5/novelrec/internal/logging"
	"github.com/mliang5/novelrec/internal/metrics"
)

// likeBoost is added to the category, tag and author weights of a liked
// novel.
const likeBoost = 0.5

// ModerationNotifier forwards inappropriate-content reports. Delivery is
// best-effort; a failing notifier never fails feedback submission.
type ModerationNotifier interface {
	Report(ctx context.Context, ev *FeedbackEvent) error
}

// Processor handles explicit feedback: it adjusts the stored profile, logs
// the event, invalidates the user's cached lists, and forwards inappropriate
// reports to moderation.
type Processor struct {
	catalog    catalog.Catalog
	prefs      PreferenceStore
	log        FeedbackLog
	engine     *Engine
	moderation ModerationNotifier
	logger     zerolog.Logger
}

// NewProcessor creates a feedback processor. The moderation notifier is
// optional; without one, inappropriate reports are only logged.
func NewProcessor(cat catalog.Catalog, prefs PreferenceStore, log FeedbackLog, engine *Engine, moderation ModerationNotifier) *Processor {
	return &Processor{
		catalog:    cat,
		prefs:      prefs,
		log:        log,
		engine:     engine,
		moderation: moderation,
		logger:     logging.With().Str("component", "feedback").Logger(),
	}
}

// Submit processes one feedback event and returns the stored record.
//
// A like boosts the novel's category, tags and author in the stored profile.
// Dislike and not-interested soft-exclude the novel from future lists.
// Inappropriate additionally fires a moderation report; report delivery is
// asynchronous and its failure is invisible to the caller.
func (p *Processor) Submit(ctx context.Context, userID, itemID string, ftype FeedbackType, reason string) (*FeedbackEvent, error) {
	if _, err := ParseFeedbackType(string(ftype)); err != nil {
		return nil, err
	}

	n, err := p.catalog.Get(ctx, itemID)
	if err != nil {
		return nil, wrapCatalogErr(itemID, err)
	}

	ev := &FeedbackEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		ItemID:    itemID,
		Type:      ftype,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}

	patch := p.patchFor(n, ftype)
	if !patch.IsZero() {
		if err := p.prefs.Apply(ctx, userID, patch); err != nil {
			return nil, fmt.Errorf("apply feedback patch: %w", err)
		}
	}

	if err := p.log.Append(ctx, ev); err != nil {
		// The profile change already took effect; losing the audit
		// record is worth a warning, not a failed request.
		p.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("feedback log append failed")
	}

	if ftype == FeedbackInappropriate {
		p.report(ctx, ev)
	}

	if p.engine != nil {
		p.engine.InvalidateUser(userID)
	}

	metrics.FeedbackEvents.WithLabelValues(string(ftype)).Inc()
	p.logger.Debug().
		Str("user_id", userID).
		Str("item_id", itemID).
		Str("type", string(ftype)).
		Msg("feedback processed")

	return ev, nil
}

// patchFor maps a feedback type to its stored-profile change.
func (p *Processor) patchFor(n *catalog.Novel, ftype FeedbackType) *Patch {
	switch ftype {
	case FeedbackLike:
		patch := &Patch{
			CategoryDeltas: map[string]float64{n.Category: likeBoost},
			AuthorDeltas:   map[string]float64{n.Author: likeBoost},
		}
		if len(n.Tags) > 0 {
			patch.TagDeltas = make(map[string]float64, len(n.Tags))
			for _, t := range n.Tags {
				patch.TagDeltas[t] = likeBoost
			}
		}
		return patch
	case FeedbackDislike, FeedbackNotInterested, FeedbackInappropriate:
		return &Patch{ExcludeItems: []string{n.ID}}
	default:
		return &Patch{}
	}
}

// report forwards an inappropriate-content event to moderation in the
// background. The goroutine detaches from the request context so a client
// disconnect cannot drop the report mid-delivery.
func (p *Processor) report(ctx context.Context, ev *FeedbackEvent) {
	if p.moderation == nil {
		p.logger.Info().
			Str("item_id", ev.ItemID).
			Str("event_id", ev.ID).
			Msg("inappropriate content reported, no moderation notifier wired")
		return
	}

	go func(ctx context.Context) {
		if err := p.moderation.Report(ctx, ev); err != nil {
			metrics.ModerationReports.WithLabelValues("failed").Inc()
			p.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("moderation report failed")
			return
		}
		metrics.ModerationReports.WithLabelValues("sent").Inc()
	}(context.WithoutCancel(ctx))
}
