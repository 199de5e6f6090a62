// Package chat holds standalone question/answer turns: one question,
// optional attachments, one model response.
package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatTurn is a single exchange with the model. Turns are independent of
// each other; there is no running conversation state.
type ChatTurn struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name"`

	Question        string         `json:"question"`
	ResponseHTML    string         `json:"response_html"`
	ResponseSeconds float64        `json:"response_seconds"`
	AttachmentRefs  datatypes.JSON `json:"attachment_refs"` // ordered attachment ids

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func NewChatTurn(question string, attachmentIDs []uint) *ChatTurn {
	refs, _ := json.Marshal(attachmentIDs)
	return &ChatTurn{
		Name:           "draft-" + uuid.NewString(),
		Question:       question,
		AttachmentRefs: refs,
	}
}

// AttachmentIDs decodes the stored attachment references, preserving
// their order.
func (t *ChatTurn) AttachmentIDs() []uint {
	if len(t.AttachmentRefs) == 0 {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal(t.AttachmentRefs, &ids); err != nil {
		return nil
	}
	return ids
}
