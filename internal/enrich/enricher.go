package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/EnzoMH/cradcrawl-enrich/internal/fetch"
	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
	"github.com/EnzoMH/cradcrawl-enrich/internal/ratelimit"
	"github.com/EnzoMH/cradcrawl-enrich/internal/search"
	"github.com/EnzoMH/cradcrawl-enrich/internal/store"
)

// Options tunes per-step behavior of the enricher.
type Options struct {
	// FetchTimeout bounds the page-text fetch. Default 30s.
	FetchTimeout time.Duration
	// ExtractTimeout bounds the AI extraction call. Default 60s.
	ExtractTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.ExtractTimeout <= 0 {
		o.ExtractTimeout = 60 * time.Second
	}
	return o
}

// Enricher fills missing contact fields for one organization at a
// time: homepage discovery, page fetch, AI extraction, validation and
// a single batched write-back. Failures in the middle steps degrade to
// "field not obtained"; only an unknown organization or a failed
// write-back fails the item.
type Enricher struct {
	store     store.Store
	searcher  search.HomepageSearcher // nil disables discovery
	fetcher   fetch.PageFetcher
	extractor FieldExtractor
	limiter   *ratelimit.Limiter
	opts      Options
	now       func() time.Time
}

// New creates an Enricher.
func New(st store.Store, searcher search.HomepageSearcher, fetcher fetch.PageFetcher, extractor FieldExtractor, limiter *ratelimit.Limiter, opts Options) *Enricher {
	return &Enricher{
		store:     st,
		searcher:  searcher,
		fetcher:   fetcher,
		extractor: extractor,
		limiter:   limiter,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// EnrichByID loads the organization and enriches it. An unknown id is
// fatal for the item.
func (e *Enricher) EnrichByID(ctx context.Context, id string) model.Outcome {
	org, err := e.store.GetOrganization(ctx, id)
	if err != nil {
		return model.Outcome{
			OrgID:  id,
			Status: model.OutcomeFailure,
			Error:  err.Error(),
		}
	}
	return e.Enrich(ctx, *org)
}

// Enrich runs the fixed step sequence against a snapshot and returns
// the outcome. Exactly one store write happens per call, except the
// nothing-missing no-op which writes nothing.
func (e *Enricher) Enrich(ctx context.Context, org model.Organization) model.Outcome {
	start := e.now()
	log := zap.L().With(zap.String("org_id", org.ID), zap.String("org", org.Name))

	outcome := model.Outcome{
		OrgID:  org.ID,
		Status: model.OutcomeInProgress,
	}
	finish := func(status model.OutcomeStatus) model.Outcome {
		outcome.Status = status
		outcome.Duration = e.now().Sub(start).Milliseconds()
		return outcome
	}

	missing := MissingFields(org)
	if len(missing) == 0 {
		outcome.Grade = string(GradeOrganization(org))
		log.Debug("nothing missing, skipping enrichment")
		return finish(model.OutcomeSuccess)
	}

	working := org
	found := make(map[model.ContactField]string)

	// Homepage discovery. Failure here never aborts the item.
	if !working.HasField(model.FieldHomepage) && e.searcher != nil {
		url, err := e.searcher.Discover(ctx, working.Name, working.Address)
		if err != nil {
			outcome.Notes = append(outcome.Notes, "homepage discovery failed")
			log.Debug("homepage discovery failed", zap.Error(err))
		} else if validated, vErr := Homepage(url); vErr == nil {
			found[model.FieldHomepage] = validated
			working.Homepage = validated
			log.Info("homepage discovered", zap.String("url", validated))
		}
	}

	// Page fetch, only when a URL is known and page-borne fields are
	// still missing. No step-level retry; the whole item can be
	// retried by the orchestrator.
	pageText := ""
	pageURL := strings.TrimSpace(working.Homepage)
	if pageURL != "" && e.needsPageData(working) {
		fctx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
		text, err := e.fetcher.FetchText(fctx, pageURL)
		cancel()
		if err != nil {
			outcome.Notes = append(outcome.Notes, "page fetch failed")
			log.Warn("page fetch failed", zap.String("url", pageURL), zap.Error(err))
		} else {
			pageText = text
		}
	}

	// Rate-limit gate and AI extraction, restricted to fields still
	// missing so present values are never overwritten.
	if pageText != "" && e.extractor != nil {
		targets := e.stillMissing(working, found)
		if len(targets) > 0 {
			if e.limiter == nil || e.limiter.AcquireWait(ctx, EstimateTokens(pageText)) {
				e.extractAndValidate(ctx, log, pageText, targets, found)
			} else {
				outcome.Notes = append(outcome.Notes, "rate limited, extraction skipped")
				log.Warn("ai extraction skipped after rate limit backoff")
			}
		}
	}

	// Legacy rule: a fax identical to the phone is a match signal, not
	// data. The fax column stays empty; the note preserves the signal.
	e.applyFaxMatchRule(working, found, &outcome)

	for f, v := range found {
		working.SetFieldValue(f, v)
	}
	grade := GradeOrganization(working)
	outcome.Grade = string(grade)
	outcome.Found = found

	if err := e.writeBack(ctx, org, found, grade); err != nil {
		outcome.Error = err.Error()
		log.Error("write-back failed", zap.Error(err))
		return finish(model.OutcomeFailure)
	}

	for _, f := range model.TargetFields {
		if _, ok := found[f]; ok {
			outcome.Filled = append(outcome.Filled, f)
		}
	}
	log.Info("enrichment complete",
		zap.Int("filled", len(outcome.Filled)),
		zap.String("grade", string(grade)),
	)
	return finish(model.OutcomeSuccess)
}

// needsPageData reports whether any page-borne field is still missing.
func (e *Enricher) needsPageData(org model.Organization) bool {
	for _, f := range []model.ContactField{model.FieldPhone, model.FieldFax, model.FieldEmail, model.FieldAddress} {
		if !org.HasField(f) {
			return true
		}
	}
	return false
}

// stillMissing returns the fields absent from both the record and the
// found set, in target order.
func (e *Enricher) stillMissing(org model.Organization, found map[model.ContactField]string) []model.ContactField {
	var targets []model.ContactField
	for _, f := range model.TargetFields {
		if org.HasField(f) {
			continue
		}
		if _, ok := found[f]; ok {
			continue
		}
		targets = append(targets, f)
	}
	return targets
}

func (e *Enricher) extractAndValidate(ctx context.Context, log *zap.Logger, pageText string, targets []model.ContactField, found map[model.ContactField]string) {
	ectx, cancel := context.WithTimeout(ctx, e.opts.ExtractTimeout)
	defer cancel()

	candidates, err := e.extractor.Extract(ectx, pageText, targets)
	if err != nil {
		log.Warn("ai extraction failed", zap.Error(err))
		return
	}
	allowed := make(map[model.ContactField]bool, len(targets))
	for _, f := range targets {
		allowed[f] = true
	}
	for f, raw := range candidates {
		// Fields that were not requested are already present and must
		// never be overwritten.
		if !allowed[f] {
			continue
		}
		v, vErr := ValidateField(f, raw)
		if vErr != nil {
			log.Debug("candidate rejected", zap.String("field", string(f)), zap.String("value", raw), zap.Error(vErr))
			continue
		}
		found[f] = v
	}
}

func (e *Enricher) applyFaxMatchRule(org model.Organization, found map[model.ContactField]string, outcome *model.Outcome) {
	fax, ok := found[model.FieldFax]
	if !ok {
		return
	}
	phone := org.Phone
	if p, pOK := found[model.FieldPhone]; pOK {
		phone = p
	}
	if phone == "" {
		return
	}
	if phoneDigits(fax) == phoneDigits(phone) {
		delete(found, model.FieldFax)
		outcome.Notes = append(outcome.Notes, "fax_matches_phone")
	}
}

// writeBack applies the found fields in one partial update. A conflict
// with a concurrent manual edit is retried once against the fresh row;
// fields the fresh row already carries are dropped from the retry.
func (e *Enricher) writeBack(ctx context.Context, org model.Organization, found map[model.ContactField]string, grade Grade) error {
	upd := store.ContactUpdate{
		Fields:            found,
		Grade:             string(grade),
		EnrichedAt:        e.now(),
		ExpectedUpdatedAt: &org.UpdatedAt,
	}
	if len(found) > 0 && org.Status == model.StatusNew {
		contacted := model.StatusContacted
		upd.Status = &contacted
	}

	err := e.store.UpdateOrganizationContact(ctx, org.ID, upd)
	if err == nil || !errors.Is(err, store.ErrConflict) {
		return err
	}

	fresh, getErr := e.store.GetOrganization(ctx, org.ID)
	if getErr != nil {
		return getErr
	}
	retryFound := make(map[model.ContactField]string, len(found))
	working := *fresh
	for f, v := range found {
		if fresh.HasField(f) {
			continue
		}
		retryFound[f] = v
		working.SetFieldValue(f, v)
	}
	retry := store.ContactUpdate{
		Fields:            retryFound,
		Grade:             string(GradeOrganization(working)),
		EnrichedAt:        e.now(),
		ExpectedUpdatedAt: &fresh.UpdatedAt,
	}
	if len(retryFound) > 0 && fresh.Status == model.StatusNew {
		contacted := model.StatusContacted
		retry.Status = &contacted
	}
	return e.store.UpdateOrganizationContact(ctx, org.ID, retry)
}
