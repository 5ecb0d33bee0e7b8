package api

import (
	"io"

	"openrag/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type DocumentHandler struct {
	svc Service
}

func NewDocumentHandler(svc Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// HandleIngest accepts a multipart upload and acknowledges with the job
// descriptor. Processing continues in the background.
func (h *DocumentHandler) HandleIngest(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	collection := c.FormValue("collection_id")
	mediaType := fileHeader.Header.Get("Content-Type")

	resp, err := h.svc.Ingest(c.Context(), data, fileHeader.Filename, mediaType, collection)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

func (h *DocumentHandler) HandleGetDocument(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	doc, err := h.svc.GetDocument(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *DocumentHandler) HandleListDocuments(c *fiber.Ctx) error {
	filter := types.DocumentFilter{
		Collection: c.Query("collection_id"),
		Status:     types.DocumentStatus(c.Query("status")),
		Limit:      c.QueryInt("limit", 50),
		Offset:     c.QueryInt("offset", 0),
	}
	docs, err := h.svc.ListDocuments(c.Context(), filter)
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []types.Document{}
	}
	return c.JSON(fiber.Map{
		"documents": docs,
		"count":     len(docs),
	})
}

func (h *DocumentHandler) HandleDeleteDocument(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	if err := h.svc.DeleteDocument(c.Context(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

// HandleReprocess re-runs ingestion for an uploaded, failed or already
// processed document, replacing any previous chunks.
func (h *DocumentHandler) HandleReprocess(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	resp, err := h.svc.Reprocess(c.Context(), id)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}
