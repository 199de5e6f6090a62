package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"nlsearch/internal/llm"
	"nlsearch/internal/record"
	"nlsearch/internal/schema"
)

type step struct {
	reply string
	err   error
}

// fakeClient replays a fixed script of model replies and records what it
// was asked.
type fakeClient struct {
	script  []step
	prompts []string
	systems []string
}

func (f *fakeClient) Send(ctx context.Context, prompt string, opts llm.SendOptions) (string, error) {
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, opts.SystemPrompt)
	if i >= len(f.script) {
		return "", fmt.Errorf("unscripted model call %d: %s", i, prompt)
	}
	return f.script[i].reply, f.script[i].err
}

func setupPipeline(t *testing.T, script []step) (*Orchestrator, *fakeClient, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&SearchRequest{}, &record.FavoriteFilter{}, &record.Sequence{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS invoice",
		`CREATE TABLE invoice (id INTEGER PRIMARY KEY, name TEXT, date DATE, amount_total REAL, state TEXT, partner_id INTEGER)`,
		`INSERT INTO invoice (id, name, date, amount_total, state, partner_id) VALUES
			(1, 'INV/001', '2024-03-05', 150.0, 'posted', 1),
			(2, 'INV/002', '2024-03-20', 99.5, 'draft', 2),
			(3, 'INV/003', '2024-04-02', 410.0, 'posted', 4)`,
		"DELETE FROM search_requests",
		"DELETE FROM favorite_filters",
		"DELETE FROM sequences",
	} {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("setup statement failed: %v", err)
		}
	}
	reg := record.NewRegistry()
	for _, c := range record.BuiltinCollections() {
		reg.Register(c)
	}
	store := record.NewStore(db, reg, zap.NewNop())
	catalog := schema.NewIntrospector(reg, nil, zap.NewNop())
	client := &fakeClient{script: script}
	o := NewOrchestrator(db, client, catalog, store, zap.NewNop())
	o.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return o, client, db
}

const marchFilterReply = "```\n[('date', '>=', '2024-03-01'), ('date', '<', '2024-04-01')]\n```"

func TestRun_HappyPath(t *testing.T) {
	o, f, _ := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: marchFilterReply},
		{reply: "tree"},
	})
	req := NewSearchRequest("invoices from march 2024", "")
	if err := o.Create(req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Name != "SG00001" {
		t.Errorf("expected sequence name SG00001, got %q", req.Name)
	}

	view, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if req.State != StateReady {
		t.Errorf("expected state ready, got %q", req.State)
	}
	if req.Collection != "invoice" {
		t.Errorf("expected collection invoice, got %q", req.Collection)
	}
	if req.ResultCount != 2 {
		t.Errorf("expected 2 matches, got %d", req.ResultCount)
	}
	if req.Presentation != PresentationTree {
		t.Errorf("expected tree presentation, got %q", req.Presentation)
	}
	if got := strings.Join(view.ViewKinds, ","); got != "list,form" {
		t.Errorf("unexpected view kinds %q", got)
	}
	if len(view.GroupBy) != 0 {
		t.Errorf("tree presentation must not carry a grouping, got %v", view.GroupBy)
	}
	// three stages ask the model: collection, filter, presentation
	if len(f.prompts) != 3 {
		t.Fatalf("expected 3 model calls, got %d", len(f.prompts))
	}
	if !strings.Contains(f.prompts[1], "invoices from march 2024") {
		t.Errorf("filter prompt does not carry the question: %q", f.prompts[1])
	}
	if !strings.Contains(f.systems[1], "2024-03-15") {
		t.Errorf("filter system prompt does not carry today's date")
	}
}

func TestRun_EmptyQuestion(t *testing.T) {
	o, _, _ := setupPipeline(t, nil)
	req := NewSearchRequest("   ", "")
	if _, err := o.Run(context.Background(), req); !errors.Is(err, ErrQuestionRequired) {
		t.Fatalf("expected ErrQuestionRequired, got %v", err)
	}
}

func TestRun_UnknownCollection(t *testing.T) {
	raw := "not.a.model\nThis collection seemed closest to the question."
	o, _, _ := setupPipeline(t, []step{{reply: raw}})
	req := NewSearchRequest("something unmappable", "")
	if err := o.Create(req); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := o.Run(context.Background(), req)
	var uc *UnknownCollectionError
	if !errors.As(err, &uc) {
		t.Fatalf("expected UnknownCollectionError, got %v", err)
	}
	if uc.Candidate != "not.a.model" {
		t.Errorf("candidate = %q", uc.Candidate)
	}
	if uc.Reply != raw {
		t.Errorf("error must carry the raw reply, got %q", uc.Reply)
	}
	if req.State != StateIdle {
		t.Errorf("state should stay idle, got %q", req.State)
	}
	if req.CollectionReply != raw {
		t.Errorf("raw reply should be persisted for diagnosis, got %q", req.CollectionReply)
	}
}

func TestRun_ManualPreselection(t *testing.T) {
	o, f, _ := setupPipeline(t, []step{
		{reply: marchFilterReply},
		{reply: "tree"},
	})
	req := NewSearchRequest("march invoices", "invoice")
	if err := o.Create(req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("run: %v", err)
	}
	if req.CollectionReply != "manually selected: invoice" {
		t.Errorf("collection reply = %q", req.CollectionReply)
	}
	// no collection-resolution call: the first model call is the filter
	if len(f.prompts) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(f.prompts))
	}
	if !strings.Contains(f.prompts[0], "invoice") {
		t.Errorf("first prompt should be the filter prompt, got %q", f.prompts[0])
	}
}

func TestRun_NoFilterReturned(t *testing.T) {
	o, _, _ := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: "I could not determine a filter for this question."},
	})
	req := NewSearchRequest("gibberish", "")
	_, err := o.Run(context.Background(), req)
	var nf *NoFilterReturnedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NoFilterReturnedError, got %v", err)
	}
	if !strings.Contains(nf.Reply, "could not determine") {
		t.Errorf("error should quote the reply, got %q", nf.Reply)
	}
	if req.DomainReply == "" {
		t.Error("raw reply should be persisted even when extraction fails")
	}
}

func TestRun_InvalidFilter(t *testing.T) {
	o, _, _ := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: "```\n[('date', '>=')]\n```"},
	})
	req := NewSearchRequest("broken", "")
	_, err := o.Run(context.Background(), req)
	var iv *InvalidFilterError
	if !errors.As(err, &iv) {
		t.Fatalf("expected InvalidFilterError, got %v", err)
	}
	if !strings.Contains(iv.Reason, "3 elements") {
		t.Errorf("reason should explain the arity problem, got %q", iv.Reason)
	}
	if req.Domain != "" {
		t.Errorf("invalid filter must not be committed, got %q", req.Domain)
	}
}

func TestRun_UnrecognizedPresentationDefaultsToTree(t *testing.T) {
	o, _, _ := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: marchFilterReply},
		{reply: "bar-chart"},
	})
	req := NewSearchRequest("march invoices", "")
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("run: %v", err)
	}
	if req.Presentation != PresentationTree {
		t.Errorf("expected fallback to tree, got %q", req.Presentation)
	}
	if req.PresentationReply != "bar-chart" {
		t.Errorf("raw reply should still be kept, got %q", req.PresentationReply)
	}
}

func TestRun_PresentationFailureDefaultsToTree(t *testing.T) {
	o, _, _ := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: marchFilterReply},
		{err: errors.New("model unavailable")},
	})
	req := NewSearchRequest("march invoices", "")
	view, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("presentation failure must not abort the run: %v", err)
	}
	if req.Presentation != PresentationTree {
		t.Errorf("expected tree, got %q", req.Presentation)
	}
	if view.ViewKinds[0] != "list" {
		t.Errorf("unexpected primary view kind %q", view.ViewKinds[0])
	}
}

func TestRun_GraphInfersGrouping(t *testing.T) {
	o, _, _ := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: marchFilterReply},
		{reply: "graph"},
		{reply: "`date:month`"},
	})
	req := NewSearchRequest("invoice totals by month", "")
	view, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if req.GroupingKey != "date:month" {
		t.Errorf("grouping key = %q", req.GroupingKey)
	}
	if got := strings.Join(view.ViewKinds, ","); got != "graph,list,form" {
		t.Errorf("unexpected view kinds %q", got)
	}
	if len(view.GroupBy) != 1 || view.GroupBy[0] != "date:month" {
		t.Errorf("unexpected group by %v", view.GroupBy)
	}
}

func TestRun_GroupingNoneLeavesUnset(t *testing.T) {
	o, _, _ := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: marchFilterReply},
		{reply: "pivot"},
		{reply: "none"},
	})
	req := NewSearchRequest("pivot of invoices", "")
	view, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if req.GroupingKey != "" {
		t.Errorf("grouping key should stay empty, got %q", req.GroupingKey)
	}
	if len(view.GroupBy) != 0 {
		t.Errorf("group by should be empty, got %v", view.GroupBy)
	}
	if view.ViewKinds[0] != "pivot" {
		t.Errorf("unexpected primary view kind %q", view.ViewKinds[0])
	}
}

func TestRun_GroupingFailureContinues(t *testing.T) {
	o, _, _ := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: marchFilterReply},
		{reply: "graph"},
		{err: errors.New("model unavailable")},
	})
	req := NewSearchRequest("chart of invoices", "")
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("grouping failure must not abort the run: %v", err)
	}
	if req.GroupingKey != "" {
		t.Errorf("grouping key should stay empty, got %q", req.GroupingKey)
	}
	if req.State != StateReady {
		t.Errorf("expected ready, got %q", req.State)
	}
}

func TestRun_CountFailureRecordsZero(t *testing.T) {
	// the validator accepts unknown field names; counting then fails and
	// must degrade to zero without aborting
	o, _, _ := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: "```\n[('no_such_field', '=', 'x')]\n```"},
		{reply: "tree"},
	})
	req := NewSearchRequest("strange question", "")
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("count failure must not abort the run: %v", err)
	}
	if req.ResultCount != 0 {
		t.Errorf("expected zero count, got %d", req.ResultCount)
	}
	if req.State != StateReady {
		t.Errorf("expected ready, got %q", req.State)
	}
}

func TestRecalculate(t *testing.T) {
	o, _, _ := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: marchFilterReply},
		{reply: "tree"},
		// recalculate only regenerates the filter for a tree presentation
		{reply: "```\n[('state', '=', 'posted')]\n```"},
	})
	req := NewSearchRequest("march invoices", "")
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("run: %v", err)
	}

	req.Question = "posted invoices"
	view, err := o.Recalculate(context.Background(), req)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if req.Collection != "invoice" {
		t.Errorf("collection must survive recalculation, got %q", req.Collection)
	}
	if req.Presentation != PresentationTree {
		t.Errorf("presentation must survive recalculation, got %q", req.Presentation)
	}
	if !strings.Contains(req.Domain, "'posted'") {
		t.Errorf("domain not regenerated: %q", req.Domain)
	}
	if req.ResultCount != 2 {
		t.Errorf("expected 2 posted invoices, got %d", req.ResultCount)
	}
	if view.Collection != "invoice" {
		t.Errorf("view collection = %q", view.Collection)
	}
}

func TestRecalculate_RequiresCollection(t *testing.T) {
	o, _, _ := setupPipeline(t, nil)
	req := NewSearchRequest("anything", "")
	_, err := o.Recalculate(context.Background(), req)
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
}

func TestOpenResults(t *testing.T) {
	o, _, _ := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: marchFilterReply},
		{reply: "tree"},
	})
	req := NewSearchRequest("march invoices", "")
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("run: %v", err)
	}
	view, err := o.OpenResults(req)
	if err != nil {
		t.Fatalf("open results: %v", err)
	}
	if view.Collection != "invoice" || len(view.Domain) == 0 {
		t.Errorf("unexpected view %+v", view)
	}

	blank := NewSearchRequest("never ran", "")
	if _, err := o.OpenResults(blank); err == nil {
		t.Error("expected a precondition error for an unfinished request")
	}
}

func TestSaveAsFavorite(t *testing.T) {
	o, _, db := setupPipeline(t, []step{
		{reply: "invoice"},
		{reply: marchFilterReply},
		{reply: "tree"},
	})
	req := NewSearchRequest(strings.Repeat("very long question ", 10), "")
	if err := o.Create(req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("run: %v", err)
	}

	id, err := o.SaveAsFavorite(req)
	if err != nil {
		t.Fatalf("save favorite: %v", err)
	}
	if req.FavoriteFilterID == nil || *req.FavoriteFilterID != id {
		t.Error("favorite id not linked back to the request")
	}

	// saving again updates in place instead of piling up rows
	again, err := o.SaveAsFavorite(req)
	if err != nil {
		t.Fatalf("save favorite again: %v", err)
	}
	if again != id {
		t.Errorf("expected the same favorite id, got %d then %d", id, again)
	}
	var count int64
	if err := db.Model(&record.FavoriteFilter{}).Count(&count).Error; err != nil {
		t.Fatalf("count favorites: %v", err)
	}
	if count != 1 {
		t.Errorf("expected a single favorite row, got %d", count)
	}
	var fav record.FavoriteFilter
	if err := db.First(&fav, id).Error; err != nil {
		t.Fatalf("load favorite: %v", err)
	}
	if len(fav.Name) > 80 {
		t.Errorf("favorite name should be truncated to 80 chars, got %d", len(fav.Name))
	}

	blank := NewSearchRequest("never ran", "")
	if _, err := o.SaveAsFavorite(blank); err == nil {
		t.Error("expected a precondition error for an unfinished request")
	}
}
