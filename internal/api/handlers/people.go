package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facerec/internal/models"
	"github.com/your-org/facerec/pkg/dto"
)

// PeopleStore is the read side of the identity store.
type PeopleStore interface {
	ListPeople(ctx context.Context) ([]models.Person, error)
	Stats(ctx context.Context) (models.StoreStats, error)
}

type PeopleHandler struct {
	store PeopleStore
}

func NewPeopleHandler(store PeopleStore) *PeopleHandler {
	return &PeopleHandler{store: store}
}

func (h *PeopleHandler) List(c *gin.Context) {
	people, err := h.store.ListPeople(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PersonResponse, 0, len(people))
	for _, p := range people {
		resp = append(resp, dto.PersonResponse{
			ID:        p.ID,
			Name:      p.Name,
			FaceCount: p.Faces,
		})
	}

	c.JSON(http.StatusOK, gin.H{"people": resp, "total": len(resp)})
}

func (h *PeopleHandler) Stats(c *gin.Context) {
	st, err := h.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.StatsResponse{
		People:     st.People,
		Embeddings: st.Embeddings,
		VideoHits:  st.VideoHits,
	})
}
