package api

import (
	"strings"

	"github.com/fathima-sithara/dm-service/internal/apperror"
	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/utils"
	"github.com/gofiber/fiber/v2"
)

type mediaDTO struct {
	URL      string  `json:"url" validate:"required"`
	Duration float64 `json:"duration" validate:"gte=0"`
	Poster   string  `json:"poster"`
	FileName string  `json:"file_name"`
	Size     int64   `json:"size" validate:"gte=0"`
}

type sendRequest struct {
	RecipientID       string    `json:"recipient_id" validate:"required_without=RecipientUsername"`
	RecipientUsername string    `json:"recipient_username"`
	Kind              string    `json:"kind" validate:"omitempty,oneof=text image file audio video"`
	Content           string    `json:"content" validate:"max=4000"`
	Media             *mediaDTO `json:"media" validate:"omitempty"`
	ReplyTo           string    `json:"reply_to"`
}

func (r *sendRequest) media() *domain.Media {
	if r.Media == nil {
		return nil
	}
	return &domain.Media{
		URL:      r.Media.URL,
		Duration: r.Media.Duration,
		Poster:   r.Media.Poster,
		FileName: r.Media.FileName,
		Size:     r.Media.Size,
	}
}

type editRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

type reactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

type typingRequest struct {
	To     string `json:"to" validate:"required"`
	Typing bool   `json:"typing"`
}

type subscriptionRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}

// bind parses the JSON body into dst and runs its validate tags.
func bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperror.Invalid("invalid request body")
	}
	if errs := utils.ValidateStruct(dst); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Message
		}
		return apperror.Invalid(strings.Join(msgs, "; "))
	}
	return nil
}
