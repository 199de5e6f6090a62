package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nlsearch/internal/llm"
	"nlsearch/internal/record"
)

// ErrQuestionRequired rejects a turn with an empty question.
var ErrQuestionRequired = errors.New("enter a question first")

// imageMimetypes are forwarded to the model unchanged; PDFs are
// rasterized; everything else is silently ignored.
var imageMimetypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ModelClient is the slice of the llm client the chat needs.
type ModelClient interface {
	Send(ctx context.Context, prompt string, opts llm.SendOptions) (string, error)
}

// Rasterizer renders a PDF into base64 PNG pages.
type Rasterizer interface {
	Pages(data []byte) ([]string, error)
}

// AttachmentStore resolves attachment refs and keeps the audit trail.
type AttachmentStore interface {
	ResolveAttachments(ids []uint) ([]record.Attachment, error)
	NextSequence(code, prefix string) (string, error)
	AppendAudit(recordType string, recordID uint, body string) error
}

// Orchestrator answers chat turns, converting attachments into model
// image parts along the way.
type Orchestrator struct {
	db         *gorm.DB
	client     ModelClient
	store      AttachmentStore
	rasterizer Rasterizer
	logger     *zap.Logger
	now        func() time.Time
}

func NewOrchestrator(db *gorm.DB, client ModelClient, store AttachmentStore, rasterizer Rasterizer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		db:         db,
		client:     client,
		store:      store,
		rasterizer: rasterizer,
		logger:     logger,
		now:        time.Now,
	}
}

// Create persists a new turn, swapping the draft placeholder for a
// sequence reference.
func (o *Orchestrator) Create(turn *ChatTurn) error {
	if ref, err := o.store.NextSequence("chat", "CH"); err == nil {
		turn.Name = ref
	} else {
		o.logger.Warn("sequence assignment failed, keeping draft name", zap.Error(err))
	}
	return o.db.Create(turn).Error
}

// Respond sends the turn's question and attachment images to the model
// and records the answer. Model errors surface to the caller verbatim;
// attachment problems never block the question.
func (o *Orchestrator) Respond(ctx context.Context, turn *ChatTurn) error {
	if strings.TrimSpace(turn.Question) == "" {
		return ErrQuestionRequired
	}
	attachments, err := o.store.ResolveAttachments(turn.AttachmentIDs())
	if err != nil {
		return err
	}
	images := o.collectImages(attachments)

	start := o.now()
	reply, err := o.client.Send(ctx, turn.Question, llm.SendOptions{Images: images})
	if err != nil {
		return err
	}
	turn.ResponseHTML = toHTML(reply)
	turn.ResponseSeconds = math.Round(o.now().Sub(start).Seconds()*10) / 10
	if err := o.db.Save(turn).Error; err != nil {
		return err
	}
	o.appendAudit(turn, attachments)
	return nil
}

// collectImages turns attachments into model image parts, in attachment
// order. PDF pages expand in place.
func (o *Orchestrator) collectImages(attachments []record.Attachment) []llm.Image {
	var images []llm.Image
	for _, a := range attachments {
		switch {
		case imageMimetypes[a.Mimetype]:
			images = append(images, llm.Image{
				Base64: base64.StdEncoding.EncodeToString(a.Data),
				Mime:   a.Mimetype,
			})
		case a.Mimetype == "application/pdf":
			pages, err := o.rasterizer.Pages(a.Data)
			if err != nil {
				o.logger.Warn("pdf rasterization failed, skipping attachment",
					zap.String("name", a.Name), zap.Error(err))
				continue
			}
			for _, page := range pages {
				images = append(images, llm.Image{Base64: page, Mime: "image/png"})
			}
		default:
			o.logger.Warn("ignoring unsupported attachment",
				zap.String("name", a.Name), zap.String("mimetype", a.Mimetype))
		}
	}
	return images
}

func (o *Orchestrator) appendAudit(turn *ChatTurn, attachments []record.Attachment) {
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Name)
	}
	body := fmt.Sprintf("Question: %s<br/>Attachments: %s<br/>Response: %s",
		toHTML(turn.Question), strings.Join(names, ", "), turn.ResponseHTML)
	if err := o.store.AppendAudit("chat_turn", turn.ID, body); err != nil {
		o.logger.Warn("failed to append audit entry", zap.Error(err))
	}
}

func toHTML(s string) string {
	return strings.ReplaceAll(s, "\n", "<br/>")
}
