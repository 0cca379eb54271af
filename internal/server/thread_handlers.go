package server

import (
	"circle/internal/models"
	"circle/internal/repository"
	"circle/internal/service"

	"github.com/gofiber/fiber/v2"
)

type threadRequest struct {
	Content string `json:"content" form:"content"`
}

// GetThreads handles GET /api/threads. The feed is paged: limit defaults to
// 50 and is capped at 100, so clients walk older threads with offset instead
// of receiving every thread in one response.
// @Summary List threads
// @Description Newest first, with like/reply counts and the caller's like state
// @Tags threads
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 50, max 100)"
// @Param offset query int false "Threads to skip"
// @Success 200 {array} models.ThreadView
// @Failure 401 {object} models.ErrorResponse
// @Router /api/threads [get]
func (s *Server) GetThreads(c *fiber.Ctx) error {
	page := parsePagination(c, defaultThreadsLimit)

	threads, err := s.threadService.ListThreads(c.UserContext(), service.ListThreadsInput{
		ViewerID: currentUserID(c),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(threads)
}

// GetThread handles GET /api/thread/:id
// @Summary Get thread
// @Tags threads
// @Produce json
// @Security BearerAuth
// @Param id path int true "Thread ID"
// @Success 200 {object} models.ThreadView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/thread/{id} [get]
func (s *Server) GetThread(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	thread, err := s.threadService.GetThread(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(thread)
}

// GetThreadReplies handles GET /api/thread/:id/replies?limit=
// @Summary List replies
// @Tags replies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Thread ID"
// @Param limit query int false "Maximum replies"
// @Success 200 {array} models.ReplyView
// @Failure 404 {object} models.ErrorResponse
// @Router /api/thread/{id}/replies [get]
func (s *Server) GetThreadReplies(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, repository.DefaultRepliesLimit)

	replies, err := s.threadService.ListReplies(c.UserContext(), id, page.Limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(replies)
}

// CreateThread handles POST /api/thread (JSON, or multipart with an optional image).
// @Summary Create thread
// @Tags threads
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param content formData string true "Thread text"
// @Param image formData file false "Attached image"
// @Success 201 {object} object{status=string,message=string,data=models.ThreadView}
// @Failure 400 {object} models.ErrorResponse
// @Router /api/thread [post]
func (s *Server) CreateThread(c *fiber.Ctx) error {
	var req threadRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	image, err := s.storeUpload(c, "image")
	if err != nil {
		return respondError(c, err)
	}

	thread, err := s.threadService.CreateThread(c.UserContext(), service.CreateThreadInput{
		AuthorID: currentUserID(c),
		Content:  req.Content,
		Image:    optionalString(image),
	})
	if err != nil {
		s.uploadService.Remove(image)
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": "Thread created successfully",
		"data":    thread,
	})
}

// UpdateThread handles PUT /api/thread/:id; only the author may edit.
// @Summary Update thread
// @Tags threads
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Thread ID"
// @Param content formData string true "Thread text"
// @Param image formData file false "Replacement image"
// @Success 200 {object} models.ThreadView
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/thread/{id} [put]
func (s *Server) UpdateThread(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req threadRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	ctx := c.UserContext()
	userID := currentUserID(c)
	previous, err := s.threadService.GetThread(ctx, id, userID)
	if err != nil {
		return respondError(c, err)
	}

	image, err := s.storeUpload(c, "image")
	if err != nil {
		return respondError(c, err)
	}

	thread, err := s.threadService.UpdateThread(ctx, service.UpdateThreadInput{
		ThreadID: id,
		UserID:   userID,
		Content:  req.Content,
		Image:    optionalString(image),
	})
	if err != nil {
		s.uploadService.Remove(image)
		return respondError(c, err)
	}
	if image != "" && previous.Image != nil {
		s.uploadService.Remove(*previous.Image)
	}

	return c.JSON(thread)
}

// DeleteThread handles DELETE /api/thread/:id; only the author may delete.
// @Summary Delete thread
// @Tags threads
// @Produce json
// @Security BearerAuth
// @Param id path int true "Thread ID"
// @Success 200 {object} object{message=string,id=int}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/thread/{id} [delete]
func (s *Server) DeleteThread(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	thread, err := s.threadService.DeleteThread(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if thread.Image != nil {
		s.uploadService.Remove(*thread.Image)
	}

	return c.JSON(fiber.Map{
		"message": "Thread deleted successfully",
		"id":      thread.ID,
	})
}

// CreateReply handles POST /api/reply (thread_id, content, optional image).
// @Summary Create reply
// @Tags replies
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param thread_id formData int true "Thread ID"
// @Param content formData string true "Reply text"
// @Param image formData file false "Attached image"
// @Success 201 {object} object{status=string,message=string,data=models.ReplyView}
// @Failure 404 {object} models.ErrorResponse
// @Router /api/reply [post]
func (s *Server) CreateReply(c *fiber.Ctx) error {
	var req struct {
		ThreadID uint   `json:"thread_id" form:"thread_id"`
		Content  string `json:"content" form:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	if req.ThreadID == 0 {
		return respondError(c, models.NewValidationError("thread_id is required"))
	}

	image, err := s.storeUpload(c, "image")
	if err != nil {
		return respondError(c, err)
	}

	reply, err := s.replyService.CreateReply(c.UserContext(), service.CreateReplyInput{
		ThreadID: req.ThreadID,
		UserID:   currentUserID(c),
		Content:  req.Content,
		Image:    optionalString(image),
	})
	if err != nil {
		s.uploadService.Remove(image)
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": "Reply created successfully",
		"data":    reply,
	})
}

// ToggleLike handles POST /api/like/:threadId
// @Summary Toggle like
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param threadId path int true "Thread ID"
// @Success 200 {object} object{message=string,threadId=int,isLiked=bool,likesCount=int}
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/like/{threadId} [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	threadID, err := s.parseID(c, "threadId")
	if err != nil {
		return nil
	}

	result, err := s.likeService.Toggle(c.UserContext(), currentUserID(c), threadID)
	if err != nil {
		return respondError(c, err)
	}

	message := "Unliked"
	if result.IsLiked {
		message = "Liked"
	}
	return c.JSON(fiber.Map{
		"message":    message,
		"threadId":   result.ThreadID,
		"isLiked":    result.IsLiked,
		"likesCount": result.LikesCount,
	})
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
