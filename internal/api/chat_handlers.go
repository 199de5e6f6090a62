package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nlsearch/internal/chat"
	"nlsearch/internal/config"
	"nlsearch/internal/record"
)

// POST /attachments (multipart: "file")
func UploadAttachmentHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
			return
		}
		f, err := header.Open()
		if err != nil {
			renderError(c, err)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			renderError(c, err)
			return
		}
		mimetype := header.Header.Get("Content-Type")
		if mimetype == "" {
			mimetype = http.DetectContentType(data)
		}
		att := &record.Attachment{
			Name:     header.Filename,
			Mimetype: mimetype,
			Data:     data,
		}
		if err := deps.Store.SaveAttachment(att); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"id":       att.ID,
			"name":     att.Name,
			"mimetype": att.Mimetype,
		})
	}
}

// GET /attachments/:id
func GetAttachmentHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		att, err := deps.Store.GetAttachment(uint(id))
		if err != nil {
			renderError(c, err)
			return
		}
		c.Data(http.StatusOK, att.Mimetype, att.Data)
	}
}

func loadChatTurn(c *gin.Context, deps Deps) (*chat.ChatTurn, bool) {
	var turn chat.ChatTurn
	if err := deps.DB.First(&turn, "id = ?", c.Param("id")).Error; err != nil {
		renderError(c, err)
		return nil, false
	}
	return &turn, true
}

// POST /chats
func CreateChatTurnHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Question      string `json:"question"`
			AttachmentIDs []uint `json:"attachment_ids"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		turn := chat.NewChatTurn(body.Question, body.AttachmentIDs)
		if err := deps.chatOrchestrator(c, cfg).Create(turn); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, turn)
	}
}

// GET /chats/:id
func GetChatTurnHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if turn, ok := loadChatTurn(c, deps); ok {
			c.JSON(http.StatusOK, turn)
		}
	}
}

// POST /chats/:id/send
func SendChatTurnHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		turn, ok := loadChatTurn(c, deps)
		if !ok {
			return
		}
		if err := deps.chatOrchestrator(c, cfg).Respond(c.Request.Context(), turn); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, turn)
	}
}

// GET /chats/:id/audit
func ChatAuditHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		turn, ok := loadChatTurn(c, deps)
		if !ok {
			return
		}
		trail, err := deps.Store.AuditTrail("chat_turn", turn.ID)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, trail)
	}
}
