package handlers

import (
	"log/slog"
	"net/http"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/api/middleware"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	service "github.com/aaravmahajanofficial/ecommerce-basket/internal/services"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/utils"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

type BasketHandler struct {
	basketService service.BasketService
	validator     *validator.Validate
}

func NewBasketHandler(basketService service.BasketService) *BasketHandler {
	return &BasketHandler{basketService: basketService, validator: validator.New()}
}

// GetBasket godoc
//	@Summary		Get a user's basket
//	@Description	Returns the stored basket. A user without a basket gets an empty one.
//	@Tags			Basket
//	@Produce		json
//	@Param			userName	path		string					true	"User name"
//	@Success		200			{object}	models.BasketResponse	"Basket"
//	@Failure		401			{object}	response.ErrorResponse	"Authentication required"
//	@Failure		403			{object}	response.ErrorResponse	"Basket belongs to another user"
//	@Failure		503			{object}	response.ErrorResponse	"Basket store unavailable"
//	@Security		BearerAuth
//	@Router			/basket/{userName} [get]
func (h *BasketHandler) GetBasket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())
		userName := r.PathValue("userName")

		if err := middleware.RequireUser(r.Context(), userName); err != nil {
			response.Error(w, err)
			return
		}

		cart, err := h.basketService.GetBasket(r.Context(), userName)
		if err != nil {
			logger.Error("Failed to get basket", slog.Any("error", err))
			response.Error(w, err)
			return
		}

		if cart == nil {
			cart = models.NewShoppingCart(userName)
		}

		response.Success(w, http.StatusOK, models.NewBasketResponse(cart))
	}
}

// UpdateBasket godoc
//	@Summary		Replace a user's basket
//	@Description	Stores the basket after refreshing every item's price and name from the catalog.
//	@Tags			Basket
//	@Accept			json
//	@Produce		json
//	@Param			basket	body		models.UpdateBasketRequest	true	"Full basket"
//	@Success		200		{object}	models.BasketResponse		"Stored basket"
//	@Failure		400		{object}	response.ErrorResponse		"Validation error"
//	@Failure		403		{object}	response.ErrorResponse		"Basket belongs to another user"
//	@Failure		404		{object}	response.ErrorResponse		"Unknown product"
//	@Failure		502		{object}	response.ErrorResponse		"Catalog unavailable"
//	@Security		BearerAuth
//	@Router			/basket [post]
func (h *BasketHandler) UpdateBasket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		var req models.UpdateBasketRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid update basket input")
			return
		}

		if err := middleware.RequireUser(r.Context(), req.UserName); err != nil {
			response.Error(w, err)
			return
		}

		cart, err := h.basketService.UpdateBasket(r.Context(), req.Cart())
		if err != nil {
			logger.Error("Failed to update basket", slog.Any("error", err))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, models.NewBasketResponse(cart))
	}
}

// DeleteBasket godoc
//	@Summary		Delete a user's basket
//	@Tags			Basket
//	@Param			userName	path	string	true	"User name"
//	@Success		204
//	@Failure		403	{object}	response.ErrorResponse	"Basket belongs to another user"
//	@Failure		503	{object}	response.ErrorResponse	"Basket store unavailable"
//	@Security		BearerAuth
//	@Router			/basket/{userName} [delete]
func (h *BasketHandler) DeleteBasket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())
		userName := r.PathValue("userName")

		if err := middleware.RequireUser(r.Context(), userName); err != nil {
			response.Error(w, err)
			return
		}

		if err := h.basketService.DeleteBasket(r.Context(), userName); err != nil {
			logger.Error("Failed to delete basket", slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Basket deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}
