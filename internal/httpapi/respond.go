package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
)

// apiResponse is the envelope every endpoint returns, success or failure.
type apiResponse struct {
	Status    string      `json:"status"`
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func respondJSON(w http.ResponseWriter, status int, body apiResponse) {
	body.Code = status
	body.Timestamp = time.Now().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("http: failed to encode response: %v", err)
	}
}

func respondSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	respondJSON(w, status, apiResponse{Status: "success", Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, apiResponse{Status: "error", Message: message})
}

// insufficientInventoryBody is the structured payload for stock shortfalls
// so the UI can offer "reduce to N" without parsing the message.
type insufficientInventoryBody struct {
	ProductID         string `json:"productId"`
	RequestedQuantity int    `json:"requestedQuantity"`
	AvailableQuantity int    `json:"availableQuantity"`
	SuggestedQuantity int    `json:"suggestedQuantity"`
}

// respondDomainError maps a domain error to its HTTP status by kind, never
// by message text.
func respondDomainError(w http.ResponseWriter, err error) {
	cartErr, ok := domain.AsCartError(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch cartErr.Kind {
	case domain.KindNotFound:
		respondError(w, http.StatusNotFound, cartErr.Message)
	case domain.KindInsufficientInventory:
		respondQuantityError(w, cartErr)
	case domain.KindCartLimit:
		// Per-item headroom failures carry the same quantities a stock
		// shortfall does; cart-wide limits are message-only.
		if cartErr.ProductID != "" {
			respondQuantityError(w, cartErr)
			return
		}
		respondError(w, http.StatusBadRequest, cartErr.Message)
	case domain.KindValidation, domain.KindOutOfStock:
		respondError(w, http.StatusBadRequest, cartErr.Message)
	default:
		respondError(w, http.StatusInternalServerError, cartErr.Message)
	}
}

func respondQuantityError(w http.ResponseWriter, cartErr *domain.CartError) {
	suggested := cartErr.Available
	if suggested > cartErr.Requested {
		suggested = cartErr.Requested
	}
	respondJSON(w, http.StatusBadRequest, apiResponse{
		Status:  "error",
		Message: cartErr.Message,
		Data: insufficientInventoryBody{
			ProductID:         cartErr.ProductID,
			RequestedQuantity: cartErr.Requested,
			AvailableQuantity: cartErr.Available,
			SuggestedQuantity: suggested,
		},
	})
}
