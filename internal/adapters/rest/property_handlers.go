package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// PropertyHandler хендлеры /v1/properties
type PropertyHandler struct {
	listUC   usecases_port.ListPropertiesPort
	updateUC usecases_port.UpdatePropertyPort
	deleteUC usecases_port.DeletePropertyPort
	validate *validator.Validate
}

func NewPropertyHandler(
	listUC usecases_port.ListPropertiesPort,
	updateUC usecases_port.UpdatePropertyPort,
	deleteUC usecases_port.DeletePropertyPort,
) *PropertyHandler {
	return &PropertyHandler{
		listUC:   listUC,
		updateUC: updateUC,
		deleteUC: deleteUC,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ListProperties GET /v1/properties?sector=&type=&status=&limit=&offset=
func (h *PropertyHandler) ListProperties(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "ListProperties"})

	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	params := PropertyListQueryParams{
		Sector: strings.TrimSpace(query.Get("sector")),
		Type:   strings.ToLower(strings.TrimSpace(query.Get("type"))),
		Status: strings.ToLower(strings.TrimSpace(query.Get("status"))),
	}
	var err error
	if params.Limit, err = intParam(query.Get("limit")); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if params.Offset, err = intParam(query.Get("offset")); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}
	if err := h.validate.Struct(params); err != nil {
		WriteJSONError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	page, err := h.listUC.List(r.Context(), domain.PropertyListQuery{
		TenantID: principal.TenantID,
		Sector:   params.Sector,
		Type:     params.Type,
		Status:   params.Status,
		Limit:    params.Limit,
		Offset:   params.Offset,
	})
	if err != nil {
		logger.Error("List properties use case failed", err, nil)
		writeDomainError(w, err, "Failed to retrieve properties")
		return
	}
	RespondWithJSON(w, http.StatusOK, page)
}

// UpdateProperty PATCH /v1/properties/{id}
func (h *PropertyHandler) UpdateProperty(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "UpdateProperty"})

	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid property ID format")
		return
	}

	var req UpdatePropertyRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.IsEmpty() {
		WriteJSONError(w, http.StatusBadRequest, "At least one field must be provided")
		return
	}

	property, err := h.updateUC.Update(r.Context(), principal.TenantID, id, patch)
	if err != nil {
		if !errors.Is(err, domain.ErrPropertyNotFound) {
			logger.Error("Update property use case failed", err, port.Fields{"property_id": id})
		}
		writeDomainError(w, err, "Failed to update property")
		return
	}
	RespondWithJSON(w, http.StatusOK, property)
}

// DeleteProperty DELETE /v1/properties/{id} (мягкое удаление)
func (h *PropertyHandler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "DeleteProperty"})

	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid property ID format")
		return
	}

	if err := h.deleteUC.Delete(r.Context(), principal.TenantID, id); err != nil {
		if !errors.Is(err, domain.ErrPropertyNotFound) {
			logger.Error("Delete property use case failed", err, port.Fields{"property_id": id})
		}
		writeDomainError(w, err, "Failed to delete property")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// validationMessage первая ошибка валидатора в виде "field: tag"
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return "invalid " + fe.Field() + ": must satisfy " + fe.Tag() + "=" + fe.Param()
		}
		return "invalid " + fe.Field() + ": " + fe.Tag()
	}
	return "Invalid request"
}
