package router

import (
	"restaurant_pos/internal/handlers"
	"restaurant_pos/internal/middleware"

	"github.com/gin-gonic/gin"
)

const (
	RoleAdmin   = "Admin"
	RoleStaff   = "Staff"
	RoleKitchen = "Kitchen"
)

// SetupSessionRoutes sets up the terminal session and live stream routes.
func SetupSessionRoutes(authenticatedGroup *gin.RouterGroup, wh *handlers.WorkspaceHandler, lh *handlers.LiveHandler) {
	sessionRoutes := authenticatedGroup.Group("/session")
	sessionRoutes.Use(middleware.RoleAuthMiddleware(RoleAdmin, RoleStaff, RoleKitchen))
	{
		sessionRoutes.POST("", wh.OpenSession)
		sessionRoutes.DELETE("", wh.CloseSession)
		sessionRoutes.POST("/refresh", wh.RefreshSession)
		sessionRoutes.GET("/snapshot", wh.GetSnapshot)
		sessionRoutes.GET("/live", lh.Stream)
	}
}

// SetupTabRoutes sets up the order tab routes.
func SetupTabRoutes(authenticatedGroup *gin.RouterGroup, wh *handlers.WorkspaceHandler) {
	tabRoutes := authenticatedGroup.Group("/tabs")
	tabRoutes.Use(middleware.RoleAuthMiddleware(RoleAdmin, RoleStaff))
	{
		tabRoutes.GET("", wh.GetTabs)
		tabRoutes.POST("", wh.OpenTab)
		tabRoutes.POST("/:tabId/activate", wh.ActivateTab)
		tabRoutes.GET("/:tabId/items", wh.GetTabItems)
		tabRoutes.DELETE("/:tabId", wh.CloseTab)
	}
}

// SetupDraftRoutes sets up the routes acting on the active tab's draft.
func SetupDraftRoutes(authenticatedGroup *gin.RouterGroup, wh *handlers.WorkspaceHandler) {
	draftRoutes := authenticatedGroup.Group("/draft")
	draftRoutes.Use(middleware.RoleAuthMiddleware(RoleAdmin, RoleStaff))
	{
		draftRoutes.POST("/items", wh.AddDraftItem)
		draftRoutes.PATCH("/items/:itemId", wh.UpdateDraftItem)
		draftRoutes.DELETE("/items/:itemId", wh.DeleteDraftItem)
		draftRoutes.DELETE("", wh.CancelDraft)

		draftRoutes.GET("/tables", wh.GetSelectedTables)
		draftRoutes.GET("/tables/eligible", wh.GetEligibleTables)
		draftRoutes.POST("/tables/:tableId/toggle", wh.ToggleTable)
		draftRoutes.POST("/tables/commit", wh.CommitTables)
		draftRoutes.DELETE("/tables", wh.ClearTables)

		draftRoutes.GET("/checkout", wh.GetCheckout)
		draftRoutes.PATCH("/checkout", wh.UpdateCheckout)
		draftRoutes.GET("/quote", wh.GetQuote)
		draftRoutes.POST("/finalize", wh.Finalize)
	}

	// The kitchen advances lines too.
	authenticatedGroup.PATCH("/draft/items/:itemId/status", middleware.RoleAuthMiddleware(RoleAdmin, RoleStaff, RoleKitchen), wh.ChangeDraftItemStatus)
}

// SetupTableRoutes sets up the table routes.
func SetupTableRoutes(authenticatedGroup *gin.RouterGroup, th *handlers.TableHandler) {
	tableRoutes := authenticatedGroup.Group("/tables")
	tableRoutes.Use(middleware.RoleAuthMiddleware(RoleAdmin, RoleStaff))
	{
		tableRoutes.GET("", th.GetTables)
		tableRoutes.GET("/:id", th.GetTableByID)
		tableRoutes.GET("/:id/slots", th.GetAvailableSlots)
		tableRoutes.PATCH("/:id/status", th.UpdateTableStatus)
	}
}

// SetupReservationRoutes sets up the reservation routes.
func SetupReservationRoutes(authenticatedGroup *gin.RouterGroup, rh *handlers.ReservationHandler) {
	reservationRoutes := authenticatedGroup.Group("/reservations")
	reservationRoutes.Use(middleware.RoleAuthMiddleware(RoleAdmin, RoleStaff))
	{
		reservationRoutes.POST("", rh.CreateReservation)
		reservationRoutes.GET("", rh.GetReservations)
		reservationRoutes.GET("/:id", rh.GetReservationByID)
		reservationRoutes.PATCH("/:id/status", rh.UpdateReservationStatus)
	}
}

// SetupOrderRoutes sets up the order routes.
func SetupOrderRoutes(authenticatedGroup *gin.RouterGroup, oh *handlers.OrderHandler, wh *handlers.WorkspaceHandler) {
	orderRoutes := authenticatedGroup.Group("/orders")
	orderRoutes.Use(middleware.RoleAuthMiddleware(RoleAdmin, RoleStaff, RoleKitchen))
	{
		orderRoutes.GET("", oh.GetOrders)
		orderRoutes.GET("/kitchen", oh.GetKitchenQueue)
		orderRoutes.GET("/:id", oh.GetOrderByID)
		orderRoutes.PATCH("/:id/status", oh.UpdateOrderStatus)
	}
	authenticatedGroup.POST("/orders/:id/edit", middleware.RoleAuthMiddleware(RoleAdmin, RoleStaff), wh.StartDeliveryEdit)
}

// SetupMenuRoutes sets up the menu and coupon routes.
func SetupMenuRoutes(authenticatedGroup *gin.RouterGroup, mh *handlers.MenuHandler) {
	menuRoutes := authenticatedGroup.Group("/menu")
	menuRoutes.Use(middleware.RoleAuthMiddleware(RoleAdmin, RoleStaff, RoleKitchen))
	{
		menuRoutes.GET("/variants", mh.GetVariants)
		menuRoutes.GET("/variants/:id", mh.GetVariantByID)
		menuRoutes.GET("/coupons", mh.GetCoupons)
	}
}
