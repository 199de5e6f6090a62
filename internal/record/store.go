package record

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nlsearch/internal/domain"
)

// Store executes parsed filter expressions against collection tables and
// owns the supporting entities (favorite filters, sequences, audit log,
// attachments).
type Store struct {
	db       *gorm.DB
	registry *Registry
	logger   *zap.Logger
}

func NewStore(db *gorm.DB, registry *Registry, logger *zap.Logger) *Store {
	return &Store{db: db, registry: registry, logger: logger}
}

func (s *Store) Registry() *Registry {
	return s.registry
}

// Count returns the number of records matching the domain.
func (s *Store) Count(collection string, d domain.Domain) (int64, error) {
	col, ok := s.registry.Get(collection)
	if !ok {
		return 0, fmt.Errorf("unknown collection '%s'", collection)
	}
	frag, err := s.compile(col, d)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.Table(col.TableName()).Where(frag.where, frag.args...).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Search returns the ids of records matching the domain.
func (s *Store) Search(collection string, d domain.Domain) ([]int64, error) {
	col, ok := s.registry.Get(collection)
	if !ok {
		return nil, fmt.Errorf("unknown collection '%s'", collection)
	}
	frag, err := s.compile(col, d)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := s.db.Table(col.TableName()).Where(frag.where, frag.args...).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FavoriteFilter is a persisted saved search, one per originating request.
type FavoriteFilter struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	Name       string `json:"name"`
	Collection string `json:"collection"`
	Domain     string `json:"domain"`
	IsDefault  bool   `json:"is_default" gorm:"default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FavoriteFilterSpec is the upsert payload. ExistingID, when set and
// found, selects the row to update; otherwise a new filter is created.
// The upsert is not atomic against concurrent callers; favorites are
// single-user-owned, so the race is accepted.
type FavoriteFilterSpec struct {
	ExistingID *uint
	Name       string
	Collection string
	Domain     string
}

func (s *Store) UpsertFavoriteFilter(spec FavoriteFilterSpec) (uint, error) {
	if spec.ExistingID != nil {
		var existing FavoriteFilter
		err := s.db.First(&existing, *spec.ExistingID).Error
		if err == nil {
			existing.Name = spec.Name
			existing.Collection = spec.Collection
			existing.Domain = spec.Domain
			if err := s.db.Save(&existing).Error; err != nil {
				return 0, err
			}
			return existing.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}
	created := FavoriteFilter{
		Name:       spec.Name,
		Collection: spec.Collection,
		Domain:     spec.Domain,
	}
	if err := s.db.Create(&created).Error; err != nil {
		return 0, err
	}
	return created.ID, nil
}

// Sequence hands out gap-free reference numbers per code.
type Sequence struct {
	Code    string `gorm:"primaryKey"`
	Prefix  string
	Padding int
	Next    int64
}

// NextSequence returns the next reference for the code, creating the
// sequence with the given prefix on first use.
func (s *Store) NextSequence(code, prefix string) (string, error) {
	var ref string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var seq Sequence
		err := tx.Where("code = ?", code).First(&seq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seq = Sequence{Code: code, Prefix: prefix, Padding: 5, Next: 1}
		} else if err != nil {
			return err
		}
		ref = fmt.Sprintf("%s%0*d", seq.Prefix, seq.Padding, seq.Next)
		seq.Next++
		return tx.Save(&seq).Error
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// AuditEntry is one append-only trail message attached to a record.
type AuditEntry struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	RecordType string `json:"record_type" gorm:"index:idx_audit_record"`
	RecordID   uint   `json:"record_id" gorm:"index:idx_audit_record"`
	Body       string `json:"body"`
	CreatedAt  time.Time
}

// AppendAudit adds a trail entry. There is intentionally no update or
// delete counterpart.
func (s *Store) AppendAudit(recordType string, recordID uint, body string) error {
	return s.db.Create(&AuditEntry{
		RecordType: recordType,
		RecordID:   recordID,
		Body:       body,
	}).Error
}

// AuditTrail returns a record's trail entries, oldest first.
func (s *Store) AuditTrail(recordType string, recordID uint) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := s.db.Where("record_type = ? AND record_id = ?", recordType, recordID).
		Order("id").Find(&entries).Error
	return entries, err
}

// Attachment is an uploaded binary blob referenced by chat turns.
type Attachment struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Name      string `json:"name"`
	Mimetype  string `json:"mimetype"`
	Data      []byte `json:"-"`
	CreatedAt time.Time
}

func (s *Store) SaveAttachment(a *Attachment) error {
	return s.db.Create(a).Error
}

func (s *Store) GetAttachment(id uint) (*Attachment, error) {
	var a Attachment
	if err := s.db.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ResolveAttachments fetches attachments preserving the given order.
// Unknown ids are skipped.
func (s *Store) ResolveAttachments(ids []uint) ([]Attachment, error) {
	out := make([]Attachment, 0, len(ids))
	for _, id := range ids {
		a, err := s.GetAttachment(id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("attachment not found", zap.Uint("id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}
