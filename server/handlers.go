package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/opsmesh/contexture/retrieval"
	"github.com/opsmesh/contexture/storage"
)

const (
	defaultSearchTopK      = 10
	defaultConnectionsTopK = 5
	defaultDepth           = 1
)

type searchParams struct {
	Query string `query:"q"`
	TopK  int    `query:"top_k"`
}

type connectionsParams struct {
	Query string `query:"q"`
	TopK  int    `query:"top_k"`
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (s *Server) handleSearch(c echo.Context) error {
	params := new(searchParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request params"))
	}
	if strings.TrimSpace(params.Query) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("query parameter q is required"))
	}
	if params.TopK <= 0 {
		params.TopK = defaultSearchTopK
	}

	hits, err := s.engine.Search(c.Request().Context(), params.Query, params.TopK)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		}
		s.logger.Error("search failed", "query", params.Query, "err", err)
		return c.JSON(http.StatusInternalServerError, errorBody("search failed"))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"query":   params.Query,
		"count":   len(hits),
		"results": hits,
	})
}

func (s *Server) handleConnections(c echo.Context) error {
	params := new(connectionsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request params"))
	}
	if strings.TrimSpace(params.Query) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("query parameter q is required"))
	}
	if params.TopK <= 0 {
		params.TopK = defaultConnectionsTopK
	}

	// depth=0 is meaningful (seeds only), so absence defaults separately.
	depth := defaultDepth
	if raw := c.QueryParam("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, errorBody("depth must be a non-negative integer"))
		}
		depth = parsed
	}

	graph, err := s.engine.Connections(c.Request().Context(), params.Query, params.TopK, depth)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		}
		s.logger.Error("connections failed", "query", params.Query, "err", err)
		return c.JSON(http.StatusInternalServerError, errorBody("connection traversal failed"))
	}

	return c.JSON(http.StatusOK, graph)
}

func (s *Server) handleEntity(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, errorBody("entity id is required"))
	}

	detail, err := s.engine.Entity(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("entity not found"))
		}
		s.logger.Error("entity lookup failed", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, errorBody("entity lookup failed"))
	}

	return c.JSON(http.StatusOK, detail)
}
