package router

import (
	"net/http"

	"restaurant_pos/internal/handlers"
	"restaurant_pos/internal/middleware"
	"restaurant_pos/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// Dependencies are what the routes are built from.
type Dependencies struct {
	Workspace      services.WorkspaceDeps
	Manager        *services.WorkspaceManager
	SlotRules      services.SlotRules
	Clock          clockwork.Clock
	AllowedOrigins []string
}

// Setup initializes the routing for the application. It returns the live
// handler so the caller can close open sockets on shutdown.
func Setup(engine *gin.Engine, deps Dependencies) *handlers.LiveHandler {
	wd := deps.Workspace

	// Initialize Services
	tableService := services.NewTableService(wd.TableRepo, deps.SlotRules, deps.Clock)
	reservationService := services.NewReservationService(wd.ReservationRepo, wd.TableRepo, deps.SlotRules, deps.Clock)
	orderService := services.NewOrderService(wd.OrderRepo)
	menuService := services.NewMenuService(wd.VariantRepo, wd.CouponRepo)

	// Initialize Handlers
	workspaceHandler := handlers.NewWorkspaceHandler(deps.Manager)
	liveHandler := handlers.NewLiveHandler(deps.Manager, deps.AllowedOrigins)
	tableHandler := handlers.NewTableHandler(tableService)
	reservationHandler := handlers.NewReservationHandler(reservationService)
	orderHandler := handlers.NewOrderHandler(orderService)
	menuHandler := handlers.NewMenuHandler(menuService)

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "workspaces": deps.Manager.Count(), "sockets": liveHandler.Connections()})
	})

	apiV1 := engine.Group("/api/v1")
	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware())
	{
		SetupSessionRoutes(authenticated, workspaceHandler, liveHandler)
		SetupTabRoutes(authenticated, workspaceHandler)
		SetupDraftRoutes(authenticated, workspaceHandler)
		SetupTableRoutes(authenticated, tableHandler)
		SetupReservationRoutes(authenticated, reservationHandler)
		SetupOrderRoutes(authenticated, orderHandler, workspaceHandler)
		SetupMenuRoutes(authenticated, menuHandler)
	}
	return liveHandler
}

// CORS builds the cors middleware for the terminal origins.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Terminal-ID"}
	return cors.New(config)
}
