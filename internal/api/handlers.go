package api

import (
	"io"
	"time"

	"github.com/fathima-sithara/dm-service/internal/apperror"
	"github.com/fathima-sithara/dm-service/internal/auth"
	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/media"
	"github.com/fathima-sithara/dm-service/internal/pagination"
	"github.com/fathima-sithara/dm-service/internal/push"
	"github.com/fathima-sithara/dm-service/internal/service"
	"github.com/fathima-sithara/dm-service/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

type Handlers struct {
	cmds         *service.CommandService
	queries      *service.QueryService
	media        *media.Service
	subs         push.SubscriptionStore
	allowPrivate bool
	timeout      time.Duration
	log          *zap.SugaredLogger
}

// pageResponse adds the cursor for the next (older) page.
func pageResponse(p *service.MessagePage) fiber.Map {
	out := fiber.Map{"messages": p.Messages, "has_more": p.HasMore}
	if p.HasMore && len(p.Messages) > 0 {
		out["next_before"] = pagination.Cursor(p.Messages[0].CreatedAt)
	}
	return out
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	var req sendRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	v, err := h.cmds.Send(ctx, service.SendInput{
		SenderID:          auth.UserID(c),
		RecipientID:       req.RecipientID,
		RecipientUsername: req.RecipientUsername,
		Kind:              domain.Kind(req.Kind),
		Content:           req.Content,
		Media:             req.media(),
		ReplyTo:           req.ReplyTo,
	})
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, v)
}

func (h *Handlers) editMessage(c *fiber.Ctx) error {
	var req editRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	v, err := h.cmds.Edit(ctx, c.Params("msg_id"), auth.UserID(c), req.Content)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, v)
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	m, err := h.cmds.MarkOneRead(ctx, c.Params("msg_id"), auth.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, m)
}

func (h *Handlers) toggleReaction(c *fiber.Ctx) error {
	var req reactionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	rs, err := h.cmds.ToggleReaction(ctx, c.Params("msg_id"), auth.UserID(c), req.Emoji)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"reactions": rs})
}

func (h *Handlers) removeReaction(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	rs, err := h.cmds.RemoveReaction(ctx, c.Params("msg_id"), auth.UserID(c), c.Query("emoji"))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"reactions": rs})
}

func (h *Handlers) listConversations(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	page, err := h.queries.ListConversations(ctx, auth.UserID(c), c.QueryInt("page", 1), c.QueryInt("page_size", pagination.DefaultPageSize))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, page)
}

func (h *Handlers) listMessages(c *fiber.Ctx) error {
	before, err := pagination.ParseCursor(c.Query("before"))
	if err != nil {
		return apperror.Invalid("invalid before cursor")
	}
	start, err := pagination.ParseTime(c.Query("start"))
	if err != nil {
		return apperror.Invalid("invalid start date")
	}
	end, err := pagination.ParseEnd(c.Query("end"))
	if err != nil {
		return apperror.Invalid("invalid end date")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	page, err := h.queries.ListMessages(ctx, auth.UserID(c), c.Params("user_id"), service.ListOptions{
		Page:  service.Page{Before: before, Limit: c.QueryInt("limit", pagination.DefaultLimit)},
		Query: c.Query("q"),
		Start: start,
		End:   end,
	})
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, pageResponse(page))
}

func (h *Handlers) markConversationRead(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	n, err := h.cmds.MarkConversationRead(ctx, c.Params("user_id"), auth.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"updated": n})
}

func (h *Handlers) fetchThread(c *fiber.Ctx) error {
	before, err := pagination.ParseCursor(c.Query("before"))
	if err != nil {
		return apperror.Invalid("invalid before cursor")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	page, err := h.queries.FetchThread(ctx, auth.UserID(c), c.Params("thread_id"), service.Page{
		Before: before,
		Limit:  c.QueryInt("limit", pagination.DefaultLimit),
	})
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, pageResponse(page))
}

func (h *Handlers) unreadTotal(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	n, err := h.queries.GetUnreadTotal(ctx, auth.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"unread": n})
}

func (h *Handlers) suggestContacts(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	users, err := h.queries.SuggestContacts(ctx, auth.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, users)
}

func (h *Handlers) typing(c *fiber.Ctx) error {
	var req typingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.cmds.Typing(c.UserContext(), auth.UserID(c), req.To, req.Typing); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /media (multipart/form-data "file", optional "duration" in seconds)
func (h *Handlers) uploadMedia(c *fiber.Ctx) error {
	if h.media == nil {
		return apperror.Unreachable("media uploads are disabled")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return apperror.Invalid("file missing")
	}
	var duration float64
	if raw := c.FormValue("duration"); raw != "" {
		if duration, err = cast.ToFloat64E(raw); err != nil || duration < 0 {
			return apperror.Invalid("invalid duration")
		}
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	m, kind, err := h.media.Upload(ctx, auth.UserID(c), fh.Filename, fh.Header.Get("Content-Type"), data, duration)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{"kind": kind, "media": m})
}

func (h *Handlers) subscribe(c *fiber.Ctx) error {
	if h.subs == nil {
		return apperror.Unreachable("push notifications are disabled")
	}
	var req subscriptionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if !h.allowPrivate {
		if err := push.CheckEndpoint(req.Endpoint); err != nil {
			return apperror.Invalid("push endpoint must be a public https url")
		}
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	sub := push.Subscription{UserID: auth.UserID(c), Endpoint: req.Endpoint, CreatedAt: time.Now().UTC()}
	if err := h.subs.Save(ctx, sub); err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, sub)
}

// DELETE /push/subscriptions?endpoint=
func (h *Handlers) unsubscribe(c *fiber.Ctx) error {
	if h.subs == nil {
		return apperror.Unreachable("push notifications are disabled")
	}
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		return apperror.Invalid("endpoint is required")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.subs.Delete(ctx, auth.UserID(c), endpoint); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
