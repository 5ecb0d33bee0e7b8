package api

import (
	"openrag/types"

	"github.com/gofiber/fiber/v2"
)

type QueryHandler struct {
	svc Service
}

func NewQueryHandler(svc Service) *QueryHandler {
	return &QueryHandler{svc: svc}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	resp, err := h.svc.Answer(c.Context(), params)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
