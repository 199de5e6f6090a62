package record

import (
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"nlsearch/internal/domain"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&FavoriteFilter{}, &Sequence{}, &AuditEntry{}, &Attachment{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS partner",
		"DROP TABLE IF EXISTS invoice",
		`CREATE TABLE partner (id INTEGER PRIMARY KEY, name TEXT, email TEXT, city TEXT, active BOOLEAN, parent_id INTEGER)`,
		`CREATE TABLE invoice (id INTEGER PRIMARY KEY, name TEXT, date DATE, amount_total REAL, state TEXT, partner_id INTEGER)`,
		"DELETE FROM favorite_filters",
		"DELETE FROM sequences",
		"DELETE FROM audit_entries",
		"DELETE FROM attachments",
	} {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("setup statement failed: %v", err)
		}
	}
	reg := NewRegistry()
	for _, c := range BuiltinCollections() {
		reg.Register(c)
	}
	return NewStore(db, reg, zap.NewNop())
}

func seedRecords(t *testing.T, s *Store) {
	t.Helper()
	stmts := []string{
		`INSERT INTO partner (id, name, email, city, active, parent_id) VALUES
			(1, 'Sefam Industries', 'contact@sefam.example', 'Lyon', 1, NULL),
			(2, 'Sefam France', 'fr@sefam.example', 'Paris', 1, 1),
			(3, 'Sefam Lyon Sud', 'sud@sefam.example', 'Lyon', 1, 2),
			(4, 'Globex', 'info@globex.example', 'Berlin', 0, NULL)`,
		`INSERT INTO invoice (id, name, date, amount_total, state, partner_id) VALUES
			(1, 'INV/001', '2024-03-05', 150.0, 'posted', 1),
			(2, 'INV/002', '2024-03-20', 99.5, 'draft', 2),
			(3, 'INV/003', '2024-04-02', 410.0, 'posted', 4),
			(4, 'INV/004', '2024-02-28', 75.0, 'paid', 1)`,
	}
	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

func mustDomain(t *testing.T, expr string) domain.Domain {
	t.Helper()
	d, err := domain.Parse(expr, domain.Env{})
	if err != nil {
		t.Fatalf("parse domain %q: %v", expr, err)
	}
	return d
}

func TestCount_SimpleEquality(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)
	n, err := s.Count("invoice", mustDomain(t, `[('state', '=', 'posted')]`))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 posted invoices, got %d", n)
	}
}

func TestCount_DateRange(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)
	n, err := s.Count("invoice", mustDomain(t,
		`[('date', '>=', '2024-03-01'), ('date', '<', '2024-04-01')]`))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 march invoices, got %d", n)
	}
}

func TestCount_OrAndNot(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)

	n, err := s.Count("invoice", mustDomain(t, `['|', ('state', '=', 'draft'), ('state', '=', 'paid')]`))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 draft-or-paid invoices, got %d", n)
	}

	n, err = s.Count("invoice", mustDomain(t, `['!', ('state', '=', 'posted')]`))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 non-posted invoices, got %d", n)
	}
}

func TestCount_InOperator(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)
	n, err := s.Count("invoice", mustDomain(t, `[('state', 'in', ['draft', 'paid'])]`))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}

func TestCount_RelationIlikeResolvesLabel(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)
	// 'sefam' matches partners 1, 2 and 3; invoices 1, 2 and 4 point at them.
	n, err := s.Count("invoice", mustDomain(t, `[('partner_id', 'ilike', 'sefam')]`))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 sefam invoices, got %d", n)
	}
}

func TestCount_ChildOfHierarchy(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)
	// Descendants of 'Sefam Industries' (id 1): 1, 2, 3.
	n, err := s.Count("partner", mustDomain(t, `[('id', 'child_of', 1)]`))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 partners in subtree, got %d", n)
	}
}

func TestCount_ParentOfHierarchy(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)
	// Ancestors of 'Sefam Lyon Sud' (id 3): 3, 2, 1.
	n, err := s.Count("partner", mustDomain(t, `[('id', 'parent_of', 3)]`))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 partners in ancestor chain, got %d", n)
	}
}

func TestCount_UnknownFieldFails(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)
	if _, err := s.Count("invoice", mustDomain(t, `[('nope', '=', 1)]`)); err == nil {
		t.Errorf("expected unknown field to fail at the store layer")
	}
}

func TestSearch_ReturnsOrderedIDs(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)
	ids, err := s.Search("invoice", mustDomain(t, `[('state', '=', 'posted')]`))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestCount_EmptyDomainMatchesAll(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)
	n, err := s.Count("invoice", mustDomain(t, `[]`))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 4 {
		t.Errorf("expected all 4 invoices, got %d", n)
	}
}

func TestUpsertFavoriteFilter_CreateThenUpdate(t *testing.T) {
	s := setupStore(t)

	id, err := s.UpsertFavoriteFilter(FavoriteFilterSpec{
		Name:       "invoices this month",
		Collection: "invoice",
		Domain:     `[('state', '=', 'posted')]`,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	id2, err := s.UpsertFavoriteFilter(FavoriteFilterSpec{
		ExistingID: &id,
		Name:       "invoices this month",
		Collection: "invoice",
		Domain:     `[('state', '=', 'draft')]`,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if id2 != id {
		t.Errorf("upsert must reuse the linked filter, got %d then %d", id, id2)
	}

	var count int64
	s.db.Model(&FavoriteFilter{}).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one favorite filter, got %d", count)
	}
	var f FavoriteFilter
	s.db.First(&f, id)
	if f.Domain != `[('state', '=', 'draft')]` {
		t.Errorf("domain not updated: %q", f.Domain)
	}
}

func TestNextSequence(t *testing.T) {
	s := setupStore(t)
	first, err := s.NextSequence("search", "SG")
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if first != "SG00001" {
		t.Errorf("expected SG00001, got %q", first)
	}
	second, err := s.NextSequence("search", "SG")
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if second != "SG00002" {
		t.Errorf("expected SG00002, got %q", second)
	}
	other, err := s.NextSequence("chat", "CH")
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if other != "CH00001" {
		t.Errorf("independent codes must not share counters, got %q", other)
	}
}

func TestAuditTrailAppendOnly(t *testing.T) {
	s := setupStore(t)
	if err := s.AppendAudit("chat", 7, "first"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendAudit("chat", 7, "second"); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, err := s.AuditTrail("chat", 7)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(entries) != 2 || entries[0].Body != "first" || entries[1].Body != "second" {
		t.Errorf("unexpected trail: %+v", entries)
	}
}

func TestResolveAttachments_PreservesOrderSkipsUnknown(t *testing.T) {
	s := setupStore(t)
	a := Attachment{Name: "a.png", Mimetype: "image/png", Data: []byte{1}}
	b := Attachment{Name: "b.pdf", Mimetype: "application/pdf", Data: []byte{2}}
	if err := s.SaveAttachment(&a); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveAttachment(&b); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.ResolveAttachments([]uint{b.ID, 999, a.ID})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 || got[0].Name != "b.pdf" || got[1].Name != "a.png" {
		t.Errorf("unexpected attachments: %+v", got)
	}
}
