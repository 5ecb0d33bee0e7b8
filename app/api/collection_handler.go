package api

import (
	"openrag/types"

	"github.com/gofiber/fiber/v2"
)

type CollectionHandler struct {
	svc Service
}

func NewCollectionHandler(svc Service) *CollectionHandler {
	return &CollectionHandler{svc: svc}
}

func (h *CollectionHandler) HandleListCollections(c *fiber.Ctx) error {
	cols, err := h.svc.ListCollections(c.Context())
	if err != nil {
		return err
	}
	if cols == nil {
		cols = []types.Collection{}
	}
	return c.JSON(fiber.Map{"collections": cols})
}
