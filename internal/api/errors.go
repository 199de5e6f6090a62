package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"nlsearch/internal/chat"
	"nlsearch/internal/llm"
	"nlsearch/internal/search"
)

// renderError maps pipeline errors to HTTP statuses. Diagnostic-rich
// messages (raw model replies included) go out verbatim so the user can
// see what the model actually said.
func renderError(c *gin.Context, err error) {
	var (
		unknownCollection *search.UnknownCollectionError
		noFilter          *search.NoFilterReturnedError
		invalidFilter     *search.InvalidFilterError
		precondition      *search.PreconditionError
		configErr         *llm.ConfigError
		clientErr         *llm.ClientError
	)
	switch {
	case errors.Is(err, search.ErrQuestionRequired), errors.Is(err, chat.ErrQuestionRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &unknownCollection), errors.As(err, &noFilter), errors.As(err, &invalidFilter):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &precondition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &configErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case errors.As(err, &clientErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
