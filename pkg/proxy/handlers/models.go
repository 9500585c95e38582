package handlers

import (
	"net/http"
	"time"

	"tycho-hq/meridian/pkg/proxy"
	"tycho-hq/meridian/pkg/proxy/types"
)

// ModelsHandler serves GET /v1/models: every alias and canonical model the
// current catalog generation accepts.
type ModelsHandler struct {
	catalogs CatalogSource
	started  time.Time
}

// NewModelsHandler builds the model list handler.
func NewModelsHandler(catalogs CatalogSource) *ModelsHandler {
	return &ModelsHandler{
		catalogs: catalogs,
		started:  time.Now(),
	}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		_ = proxy.WriteJSONResponse(w, http.StatusMethodNotAllowed,
			types.NewInvalidRequestError("method not allowed, use GET", "", ""))
		return
	}

	infos := h.catalogs.Current().Models()
	list := types.ModelList{
		Object: "list",
		Data:   make([]types.Model, 0, len(infos)),
	}
	for _, info := range infos {
		ownedBy := info.OwnedBy
		if info.Alias {
			ownedBy = "meridian"
		}
		list.Data = append(list.Data, types.Model{
			ID:      info.ID,
			Object:  "model",
			Created: h.started.Unix(),
			OwnedBy: ownedBy,
		})
	}

	_ = proxy.WriteJSONResponse(w, http.StatusOK, list)
}
