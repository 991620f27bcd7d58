package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/forumgram/forumgram/internal/forum"
)

// ForumHandler proxies topic, post and search operations to the forum API
// on behalf of a local forum user id. Per-user operations resolve the id
// to a username first, then impersonate it upstream.
type ForumHandler struct {
	client *forum.Client
	logger *slog.Logger
}

// NewForumHandler creates a ForumHandler.
func NewForumHandler(log *slog.Logger, client *forum.Client) *ForumHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ForumHandler{
		client: client,
		logger: log.With(slog.String("handler", "forum")),
	}
}

// Register registers forum proxy routes.
func (h *ForumHandler) Register(e *echo.Echo) {
	e.POST("/post", h.CreatePost)
	e.POST("/reply", h.Reply)
	e.GET("/categories", h.Categories)
	e.GET("/topics/:id", h.Topics)
	e.GET("/search", h.Search)
	e.POST("/like", h.Like)
}

type createPostRequest struct {
	UserID     string `json:"user_id"`
	Title      string `json:"title"`
	Raw        string `json:"raw"`
	CategoryID int64  `json:"category_id"`
}

// CreatePost opens a new topic on behalf of the given local user id.
func (h *ForumHandler) CreatePost(c echo.Context) error {
	var req createPostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Raw) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id, title and raw are required")
	}
	username, err := h.resolveUser(c, req.UserID)
	if err != nil {
		return err
	}
	topicID, err := h.client.CreateTopic(c.Request().Context(), username, req.Title, req.Raw, req.CategoryID)
	if err != nil {
		return h.upstreamError(c, "create post", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "topic_id": topicID})
}

type replyRequest struct {
	UserID  string `json:"user_id"`
	TopicID int64  `json:"topic_id"`
	Raw     string `json:"raw"`
}

// Reply adds a post to an existing topic.
func (h *ForumHandler) Reply(c echo.Context) error {
	var req replyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.UserID) == "" || req.TopicID == 0 || strings.TrimSpace(req.Raw) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id, topic_id and raw are required")
	}
	username, err := h.resolveUser(c, req.UserID)
	if err != nil {
		return err
	}
	postID, err := h.client.Reply(c.Request().Context(), username, req.TopicID, req.Raw)
	if err != nil {
		return h.upstreamError(c, "reply", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "post_id": postID})
}

// Categories lists the forum categories.
func (h *ForumHandler) Categories(c echo.Context) error {
	categories, err := h.client.Categories(c.Request().Context())
	if err != nil {
		return h.upstreamError(c, "categories", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "categories": categories})
}

// Topics lists the visible topics of one category.
func (h *ForumHandler) Topics(c echo.Context) error {
	categoryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "category id must be numeric")
	}
	topics, err := h.client.Topics(c.Request().Context(), categoryID)
	if err != nil {
		return h.upstreamError(c, "topics", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "topics": topics})
}

// Search runs a full-text search over the forum.
func (h *ForumHandler) Search(c echo.Context) error {
	term := strings.TrimSpace(c.QueryParam("term"))
	if term == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "term is required")
	}
	results, err := h.client.Search(c.Request().Context(), term)
	if err != nil {
		return h.upstreamError(c, "search", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "results": results})
}

type likeRequest struct {
	UserID string `json:"user_id"`
	PostID int64  `json:"post_id"`
}

// Like records a like on a post.
func (h *ForumHandler) Like(c echo.Context) error {
	var req likeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.UserID) == "" || req.PostID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and post_id are required")
	}
	username, err := h.resolveUser(c, req.UserID)
	if err != nil {
		return err
	}
	if err := h.client.Like(c.Request().Context(), username, req.PostID); err != nil {
		return h.upstreamError(c, "like", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *ForumHandler) resolveUser(c echo.Context, userID string) (string, error) {
	username, err := h.client.Username(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, forum.ErrNotFound) {
			return "", echo.NewHTTPError(http.StatusBadRequest, "unknown user_id")
		}
		return "", h.upstreamError(c, "resolve user", err)
	}
	return username, nil
}

func (h *ForumHandler) upstreamError(c echo.Context, op string, err error) error {
	if errors.Is(err, forum.ErrNotConfigured) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "forum api not configured")
	}
	if errors.Is(err, forum.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	h.logger.Error("forum proxy failed", slog.String("op", op), slog.Any("error", err))
	return echo.NewHTTPError(http.StatusBadGateway, "forum upstream error")
}
