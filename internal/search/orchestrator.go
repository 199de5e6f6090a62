// Package search drives the natural-language search pipeline: collection
// resolution, filter generation, match counting, presentation and
// grouping inference.
package search

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nlsearch/internal/domain"
	"nlsearch/internal/llm"
	"nlsearch/internal/record"
)

// ErrQuestionRequired rejects a run with an empty question.
var ErrQuestionRequired = errors.New("enter a search question first")

// ModelClient is the slice of the llm client the pipeline needs.
type ModelClient interface {
	Send(ctx context.Context, prompt string, opts llm.SendOptions) (string, error)
}

// Catalog grounds prompts with live schema information.
type Catalog interface {
	DescribeFields(ctx context.Context, collection string) string
	ListCollections(ctx context.Context) string
	Known(name string) bool
}

// RecordStore is the slice of the record store the pipeline needs.
type RecordStore interface {
	Count(collection string, d domain.Domain) (int64, error)
	UpsertFavoriteFilter(spec record.FavoriteFilterSpec) (uint, error)
	NextSequence(code, prefix string) (string, error)
}

// ResultView describes how to open the results of a finished search.
type ResultView struct {
	Collection string        `json:"collection"`
	Domain     domain.Domain `json:"-"`
	ViewKinds  []string      `json:"view_kinds"` // primary kind first
	GroupBy    []string      `json:"group_by,omitempty"`
}

// Orchestrator runs search requests through the pipeline. Stages are
// strictly sequential; each stage's result is committed before the next
// one starts, so a failure keeps all earlier progress.
type Orchestrator struct {
	db      *gorm.DB
	client  ModelClient
	catalog Catalog
	store   RecordStore
	logger  *zap.Logger
	now     func() time.Time
}

func NewOrchestrator(db *gorm.DB, client ModelClient, catalog Catalog, store RecordStore, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		db:      db,
		client:  client,
		catalog: catalog,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

func (o *Orchestrator) env() domain.Env {
	return domain.Env{Now: o.now}
}

// Create persists a new request, swapping the draft placeholder for a
// sequence reference.
func (o *Orchestrator) Create(req *SearchRequest) error {
	if ref, err := o.store.NextSequence("search", "SG"); err == nil {
		req.Name = ref
	} else {
		o.logger.Warn("sequence assignment failed, keeping draft name", zap.Error(err))
	}
	return o.db.Create(req).Error
}

func (o *Orchestrator) save(req *SearchRequest) error {
	return o.db.Save(req).Error
}

// Run drives a request through the full pipeline and returns the result
// view on success.
func (o *Orchestrator) Run(ctx context.Context, req *SearchRequest) (*ResultView, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrQuestionRequired
	}
	start := o.now()

	if err := o.resolveCollection(ctx, req); err != nil {
		return nil, err
	}
	if err := o.generateFilter(ctx, req); err != nil {
		return nil, err
	}
	req.ResponseSeconds = roundSeconds(o.now().Sub(start))
	o.countMatches(req)
	o.inferPresentation(ctx, req)
	o.inferGrouping(ctx, req)

	req.State = StateReady
	if err := o.save(req); err != nil {
		return nil, err
	}
	o.logger.Info("search completed",
		zap.String("name", req.Name),
		zap.String("collection", req.Collection),
		zap.String("domain", req.Domain),
		zap.Int64("count", req.ResultCount))
	return o.buildView(req)
}

// Recalculate re-runs filter generation, grouping inference and the
// count for an already-resolved request. Collection and presentation are
// left untouched.
func (o *Orchestrator) Recalculate(ctx context.Context, req *SearchRequest) (*ResultView, error) {
	if req.Collection == "" {
		return nil, &PreconditionError{Action: "recalculate the filter"}
	}
	start := o.now()
	if err := o.generateFilter(ctx, req); err != nil {
		return nil, err
	}
	req.ResponseSeconds = roundSeconds(o.now().Sub(start))
	req.GroupingKey = ""
	o.inferGrouping(ctx, req)
	o.countMatches(req)

	req.State = StateReady
	if err := o.save(req); err != nil {
		return nil, err
	}
	return o.buildView(req)
}

// OpenResults re-emits the result view. The count is always recomputed,
// never trusted stale.
func (o *Orchestrator) OpenResults(req *SearchRequest) (*ResultView, error) {
	if req.Collection == "" || req.Domain == "" {
		return nil, &PreconditionError{Action: "open results"}
	}
	o.countMatches(req)
	if err := o.save(req); err != nil {
		return nil, err
	}
	return o.buildView(req)
}

// SaveAsFavorite creates or updates the single favorite filter linked to
// this request.
func (o *Orchestrator) SaveAsFavorite(req *SearchRequest) (uint, error) {
	if req.Collection == "" || req.Domain == "" {
		return 0, &PreconditionError{Action: "save a favorite"}
	}
	name := req.Question
	if len(name) > 80 {
		name = name[:80]
	}
	id, err := o.store.UpsertFavoriteFilter(record.FavoriteFilterSpec{
		ExistingID: req.FavoriteFilterID,
		Name:       name,
		Collection: req.Collection,
		Domain:     req.Domain,
	})
	if err != nil {
		return 0, err
	}
	req.FavoriteFilterID = &id
	if err := o.save(req); err != nil {
		return 0, err
	}
	return id, nil
}

// resolveCollection fills req.Collection, either from the user's manual
// choice or by asking the model against the collection catalogue.
func (o *Orchestrator) resolveCollection(ctx context.Context, req *SearchRequest) error {
	if req.Preselected != "" {
		req.Collection = req.Preselected
		req.CollectionReply = "manually selected: " + req.Preselected
		req.State = StateCollectionResolved
		return o.save(req)
	}

	collections := o.catalog.ListCollections(ctx)
	reply, err := o.client.Send(ctx, collectionPrompt(req.Question, collections), llm.SendOptions{
		SystemPrompt: collectionSystemPrompt,
	})
	if err != nil {
		return err
	}
	req.CollectionReply = strings.TrimSpace(reply)
	if err := o.save(req); err != nil {
		return err
	}

	candidate := firstLine(reply)
	if !o.catalog.Known(candidate) {
		return &UnknownCollectionError{Candidate: candidate, Reply: req.CollectionReply}
	}
	req.Collection = candidate
	req.State = StateCollectionResolved
	return o.save(req)
}

// generateFilter asks the model for a filter expression, extracts it and
// validates it before committing.
func (o *Orchestrator) generateFilter(ctx context.Context, req *SearchRequest) error {
	fields := o.catalog.DescribeFields(ctx, req.Collection)
	today := o.now().Format("2006-01-02")
	reply, err := o.client.Send(ctx, filterPrompt(req.Collection, fields, req.Question), llm.SendOptions{
		SystemPrompt: filterSystemPrompt(today),
	})
	if err != nil {
		return err
	}
	req.DomainReply = reply
	if err := o.save(req); err != nil {
		return err
	}

	candidate := domain.Extract(reply, true)
	if candidate == "" {
		return &NoFilterReturnedError{Reply: reply}
	}
	result := domain.Validate(candidate, o.env())
	if !result.Valid {
		return &InvalidFilterError{Candidate: candidate, Reason: result.Err}
	}
	req.Domain = result.Domain
	req.State = StateFilterGenerated
	return o.save(req)
}

// countMatches is advisory: every failure degrades to zero and the
// pipeline continues.
func (o *Orchestrator) countMatches(req *SearchRequest) {
	req.ResultCount = 0
	d, err := domain.Parse(req.Domain, o.env())
	if err == nil {
		if n, cerr := o.store.Count(req.Collection, d); cerr == nil {
			req.ResultCount = n
		} else {
			o.logger.Warn("count failed, recording zero",
				zap.String("collection", req.Collection), zap.Error(cerr))
		}
	} else {
		o.logger.Warn("domain evaluation failed, recording zero",
			zap.String("domain", req.Domain), zap.Error(err))
	}
	if req.State == StateFilterGenerated {
		req.State = StateCountKnown
	}
	if err := o.save(req); err != nil {
		o.logger.Warn("failed to persist count", zap.Error(err))
	}
}

// inferPresentation picks tree/graph/pivot; anything unexpected, and any
// model failure, degrades to tree.
func (o *Orchestrator) inferPresentation(ctx context.Context, req *SearchRequest) {
	if req.Presentation != "" {
		return
	}
	req.Presentation = PresentationTree
	reply, err := o.client.Send(ctx, presentationPrompt(req.Question), llm.SendOptions{
		SystemPrompt: presentationSystemPrompt,
	})
	if err != nil {
		o.logger.Warn("presentation inference failed, defaulting to tree", zap.Error(err))
	} else {
		req.PresentationReply = strings.TrimSpace(reply)
		switch normalizeToken(reply) {
		case PresentationTree:
			req.Presentation = PresentationTree
		case PresentationGraph:
			req.Presentation = PresentationGraph
		case PresentationPivot:
			req.Presentation = PresentationPivot
		}
	}
	req.State = StatePresentationKnown
	if err := o.save(req); err != nil {
		o.logger.Warn("failed to persist presentation", zap.Error(err))
	}
}

// inferGrouping runs only for graph/pivot presentations without a
// grouping key yet. 'none' and failures leave the key unset.
func (o *Orchestrator) inferGrouping(ctx context.Context, req *SearchRequest) {
	if req.Presentation != PresentationGraph && req.Presentation != PresentationPivot {
		return
	}
	if req.GroupingKey != "" {
		return
	}
	fields := o.catalog.DescribeFields(ctx, req.Collection)
	reply, err := o.client.Send(ctx, groupingPrompt(req.Question, fields), llm.SendOptions{
		SystemPrompt: groupingSystemPrompt,
	})
	if err != nil {
		o.logger.Warn("grouping inference failed, leaving unset", zap.Error(err))
	} else {
		req.GroupingReply = strings.TrimSpace(reply)
		key := normalizeToken(reply)
		if key != "" && key != "none" {
			req.GroupingKey = key
		}
	}
	req.State = StateGroupingKnown
	if err := o.save(req); err != nil {
		o.logger.Warn("failed to persist grouping", zap.Error(err))
	}
}

func (o *Orchestrator) buildView(req *SearchRequest) (*ResultView, error) {
	d, err := domain.Parse(req.Domain, o.env())
	if err != nil {
		return nil, &InvalidFilterError{Candidate: req.Domain, Reason: err.Error()}
	}
	view := &ResultView{
		Collection: req.Collection,
		Domain:     d,
	}
	switch req.Presentation {
	case PresentationGraph:
		view.ViewKinds = []string{"graph", "list", "form"}
	case PresentationPivot:
		view.ViewKinds = []string{"pivot", "list", "form"}
	default:
		view.ViewKinds = []string{"list", "form"}
	}
	if (req.Presentation == PresentationGraph || req.Presentation == PresentationPivot) && req.GroupingKey != "" {
		view.GroupBy = []string{req.GroupingKey}
	}
	return view, nil
}

// firstLine cleans a model reply down to its first meaningful token line.
func firstLine(reply string) string {
	line := strings.TrimSpace(reply)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "`"))
}

func normalizeToken(reply string) string {
	return strings.ToLower(firstLine(reply))
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*10) / 10
}
